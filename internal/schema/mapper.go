package schema

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
)

// Mapper owns a mutable tree and applies updates to it under a Strategy.
type Mapper struct {
	// Schema is the current tree. Callers may read it directly; use Snapshot
	// for a copy that is safe to retain.
	Schema map[string]any

	// Decisions accumulates every conflict decision made by Apply, including
	// refusals from rolled-back calls.
	Decisions []Decision

	snapshots []map[string]any
	logger    *slog.Logger
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger decisions are written to (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) {
		m.logger = l
	}
}

// New creates a Mapper over a deep copy of base.
func New(base map[string]any, opts ...Option) *Mapper {
	m := &Mapper{Schema: deepCopyMap(base)}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// Snapshot returns a deep copy of the current tree.
func (m *Mapper) Snapshot() map[string]any {
	return deepCopyMap(m.Schema)
}

// Apply reconciles updates into the tree.
//
// Apply is atomic: it works on a copy and only replaces Schema on success, so
// an unknown strategy or a manual refusal leaves Schema exactly as it was.
func (m *Mapper) Apply(updates map[string]any, strategy Strategy) error {
	if !strategy.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}

	working := deepCopyMap(m.Schema)
	if err := m.applyInto(working, updates, strategy, ""); err != nil {
		return err
	}
	m.Schema = working
	return nil
}

func (m *Mapper) applyInto(dst, updates map[string]any, strategy Strategy, prefix string) error {
	// Sorted for deterministic decision order.
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		incoming := updates[k]
		path := joinPath(prefix, k)

		current, exists := dst[k]
		if !exists || reflect.DeepEqual(current, incoming) {
			dst[k] = deepCopy(incoming)
			continue
		}

		curMap, curIsMap := current.(map[string]any)
		inMap, inIsMap := incoming.(map[string]any)

		switch {
		case curIsMap && inIsMap && strategy != Overwrite:
			// dst is already a private copy, so curMap can be mutated in place.
			if err := m.applyInto(curMap, inMap, strategy, path); err != nil {
				return err
			}
		case reflect.TypeOf(current) != reflect.TypeOf(incoming):
			if err := m.resolve(dst, k, path, strategy, "type mismatch", current, incoming); err != nil {
				return err
			}
		default:
			if err := m.resolve(dst, k, path, strategy, "value conflict", current, incoming); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve applies strategy to a single conflicting key.
func (m *Mapper) resolve(dst map[string]any, key, path string, strategy Strategy, reason string, current, incoming any) error {
	switch strategy {
	case Merge:
		m.record(Decision{Path: path, Strategy: strategy, Action: ActionKeep, Reason: reason})
		m.logger.Info("schema conflict: keeping current value",
			"path", path, "reason", reason, "current", current, "discarded", incoming)
	case Overwrite:
		m.record(Decision{Path: path, Strategy: strategy, Action: ActionOverwrite, Reason: reason})
		m.logger.Info("schema conflict: overwriting value",
			"path", path, "reason", reason, "previous", current, "value", incoming)
		dst[key] = deepCopy(incoming)
	case Manual:
		m.record(Decision{Path: path, Strategy: strategy, Action: ActionRefuse, Reason: reason})
		m.logger.Warn("schema conflict: manual resolution required",
			"path", path, "reason", reason, "current", current, "incoming", incoming)
		return &ConflictError{Path: path, Reason: reason, Current: current, Incoming: incoming}
	}
	return nil
}

func (m *Mapper) record(d Decision) {
	m.Decisions = append(m.Decisions, d)
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
