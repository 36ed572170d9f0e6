package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy governs how differing values for the same key are reconciled.
type Strategy string

const (
	Merge     Strategy = "merge"
	Overwrite Strategy = "overwrite"
	Manual    Strategy = "manual"
)

// ErrUnknownStrategy is returned for any strategy outside merge/overwrite/manual.
var ErrUnknownStrategy = errors.New("unknown conflict strategy")

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case Merge, Overwrite, Manual:
		return true
	}
	return false
}

// ParseStrategy converts a case-insensitive name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
	return s, nil
}

// Action is the outcome recorded for a conflicting key.
type Action string

const (
	ActionKeep      Action = "keep"
	ActionOverwrite Action = "overwrite"
	ActionRefuse    Action = "refuse"
)

// Decision records how one conflicting leaf (or subtree) was resolved.
type Decision struct {
	Path     string
	Strategy Strategy
	Action   Action
	Reason   string // "type mismatch" or "value conflict"
}

// ConflictError is returned by the manual strategy on the first conflicting
// leaf. The mapper's tree is left untouched.
type ConflictError struct {
	Path     string
	Reason   string
	Current  any
	Incoming any
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("manual resolution required at %q: %s (current=%v, incoming=%v)",
		e.Path, e.Reason, e.Current, e.Incoming)
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
