package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/roach88/litesync/internal/engine"
	"github.com/roach88/litesync/internal/journal"
	"github.com/roach88/litesync/internal/metrics"
	"github.com/roach88/litesync/internal/row"
)

// Names of the events Run emits.
const (
	EventStart = "sync.start"
	EventEnd   = "sync.end"
	EventError = "sync.error"
)

// Event is a structured record of one step of a run.
type Event struct {
	Name   string
	RunID  string
	Fields map[string]any
}

// LogHook receives every Event Run emits, synchronously and in order.
type LogHook func(Event)

type options struct {
	hook       LogHook
	journal    *journal.Journal
	engineOpts []engine.Option
	logger     *slog.Logger
	newRunID   func() string
}

// Option configures Run.
type Option func(*options)

// WithLogHook delivers run events to hook.
func WithLogHook(hook LogHook) Option {
	return func(o *options) {
		o.hook = hook
	}
}

// WithJournal records run outcomes and conflicts in j.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// WithEngineOptions passes opts to both engines Run opens.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithLogger sets the logger for Run and its engines (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func newOptions(opts []Option) *options {
	o := &options{
		logger:   slog.Default(),
		newRunID: newRunID,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// newRunID returns a time-ordered UUIDv7 so journal rows sort by run.
func newRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (o *options) emit(name, runID string, fields map[string]any) {
	if o.hook == nil {
		return
	}
	o.hook(Event{Name: name, RunID: runID, Fields: fields})
}

// Run syncs the databases at aPath and bPath once.
func Run(ctx context.Context, aPath, bPath string, opts ...Option) (*engine.Report, error) {
	o := newOptions(opts)
	runID := o.newRunID()
	logger := o.logger.With("run_id", runID)
	start := time.Now()

	logger.Info(EventStart, "a", aPath, "b", bPath)
	o.emit(EventStart, runID, map[string]any{"a": aPath, "b": bPath})

	report, err := runOnce(ctx, aPath, bPath, o, logger)
	if err != nil {
		err = errors.WithStack(err)
		logger.Error(EventError, "a", aPath, "b", bPath, "error", err.Error(), "trace", fmt.Sprintf("%+v", err))
		metrics.SyncRunsTotal.WithLabelValues(metrics.Fail).Inc()
		o.emit(EventError, runID, map[string]any{"a": aPath, "b": bPath, "error": err.Error()})

		if jerr := o.recordEvent(ctx, runID, aPath, bPath, journal.StatusFailure, err.Error()); jerr != nil {
			logger.Error("journal write failed", "error", jerr)
		}
		return nil, err
	}

	fields := map[string]any{
		"a":         aPath,
		"b":         bPath,
		"tables":    len(report.Tables),
		"skipped":   len(report.Skipped),
		"to_a":      report.CopiedToSelf,
		"to_b":      report.CopiedToOther,
		"conflicts": len(report.Conflicts),
		"duration":  time.Since(start),
	}
	logger.Info(EventEnd,
		"a", aPath, "b", bPath,
		"tables", fields["tables"],
		"to_a", fields["to_a"],
		"to_b", fields["to_b"],
		"conflicts", fields["conflicts"],
		"duration", fields["duration"],
	)
	metrics.SyncRunsTotal.WithLabelValues(metrics.Ok).Inc()
	o.emit(EventEnd, runID, fields)
	o.journalSuccess(ctx, runID, aPath, bPath, report, logger)
	return report, nil
}

func runOnce(ctx context.Context, aPath, bPath string, o *options, logger *slog.Logger) (_ *engine.Report, err error) {
	engineOpts := append([]engine.Option{engine.WithLogger(logger)}, o.engineOpts...)

	a, err := engine.Open(aPath, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", aPath, err)
	}
	defer closeEngine(a, &err)

	b, err := engine.Open(bPath, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", bPath, err)
	}
	defer closeEngine(b, &err)

	return a.SyncWith(ctx, b)
}

func closeEngine(e *engine.Engine, err *error) {
	if cerr := e.Close(); cerr != nil && *err == nil {
		*err = fmt.Errorf("close %s: %w", e.Path(), cerr)
	}
}

// journalSuccess records a committed sync. Both databases are already
// committed, so a journal failure is logged and does not fail the run.
func (o *options) journalSuccess(ctx context.Context, runID, aPath, bPath string, report *engine.Report, logger *slog.Logger) {
	if err := o.recordConflicts(ctx, runID, aPath, bPath, report.Conflicts); err != nil {
		logger.Error("journal write failed", "record", "conflicts", "error", err)
	}
	if err := o.recordEvent(ctx, runID, aPath, bPath, journal.StatusSuccess, ""); err != nil {
		logger.Error("journal write failed", "record", "event", "error", err)
	}
}

func (o *options) recordEvent(ctx context.Context, runID, aPath, bPath, status, detail string) error {
	if o.journal == nil {
		return nil
	}
	_, err := o.journal.RecordEvent(ctx, journal.Event{
		RunID:    runID,
		SourceDB: aPath,
		TargetDB: bPath,
		Action:   journal.ActionSync,
		Status:   status,
		Detail:   detail,
	})
	return err
}

func (o *options) recordConflicts(ctx context.Context, runID, aPath, bPath string, conflicts []engine.Conflict) error {
	if o.journal == nil || len(conflicts) == 0 {
		return nil
	}
	entries := make([]journal.Conflict, 0, len(conflicts))
	for _, c := range conflicts {
		key, err := row.Key(c.ID)
		if err != nil {
			return fmt.Errorf("journal conflict %s: %w", c.Table, err)
		}
		entries = append(entries, journal.Conflict{
			RunID:    runID,
			SourceDB: aPath,
			TargetDB: bPath,
			Table:    c.Table,
			RowID:    key,
			Decision: decision(c.Winner),
		})
	}
	return o.journal.RecordConflicts(ctx, entries)
}

// decision names the winning side by file role rather than engine role.
func decision(w engine.Side) string {
	if w == engine.SideOther {
		return "b"
	}
	return "a"
}
