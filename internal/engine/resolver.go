package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/litesync/internal/row"
	"github.com/roach88/litesync/internal/schema"
)

// Side names one of the two engines in a SyncWith call.
type Side string

const (
	SideSelf  Side = "self"
	SideOther Side = "other"
)

// Merger combines the winning row of a conflict with the losing one.
type Merger interface {
	Merge(winner, loser row.Row) (row.Row, error)
}

// OverwriteMerger lays the winner's columns over the loser's using the
// schema.Overwrite strategy: every column the winner has wins, columns only
// the loser has survive.
type OverwriteMerger struct {
	// Logger receives the per-column overwrite decisions (default slog.Default()).
	Logger *slog.Logger
}

// Merge implements Merger.
func (m OverwriteMerger) Merge(winner, loser row.Row) (row.Row, error) {
	var opts []schema.Option
	if m.Logger != nil {
		opts = append(opts, schema.WithLogger(m.Logger))
	}
	mapper := schema.New(loser.Map(), opts...)
	if err := mapper.Apply(winner.Map(), schema.Overwrite); err != nil {
		return nil, fmt.Errorf("merge row: %w", err)
	}
	return row.Row(mapper.Schema), nil
}

// Resolution is the outcome of resolving one conflicting row.
type Resolution struct {
	Row    row.Row
	Winner Side
}

// Resolver decides the converged value of a row that differs on both sides.
type Resolver interface {
	Resolve(table string, self, other row.Row, merger Merger) (Resolution, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(table string, self, other row.Row, merger Merger) (Resolution, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(table string, self, other row.Row, merger Merger) (Resolution, error) {
	return f(table, self, other, merger)
}

// LastWriteWins picks the row with the strictly greater timestamp
// (updated_at, then modified_at, missing = 0) as the winner; ties go to self.
// The winner is merged onto the loser with the engine's Merger.
type LastWriteWins struct{}

// Resolve implements Resolver.
func (LastWriteWins) Resolve(table string, self, other row.Row, merger Merger) (Resolution, error) {
	c, err := row.CompareTimestamps(self.Timestamp(), other.Timestamp())
	if err != nil {
		id, _ := self.ID()
		return Resolution{}, &Error{
			Code:    ErrCodeIncomparable,
			Message: fmt.Sprintf("cannot order conflicting versions of id %v", id),
			Table:   table,
			Err:     err,
		}
	}

	winner, loser, side := self, other, SideSelf
	if c < 0 {
		winner, loser, side = other, self, SideOther
	}

	merged, err := merger.Merge(winner, loser)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Row: merged, Winner: side}, nil
}

func (e *Engine) resolverFor(table string) Resolver {
	if r, ok := e.tableResolvers[table]; ok {
		return r
	}
	return e.resolver
}
