package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/litesync/internal/changestream"
	"github.com/roach88/litesync/internal/metrics"
	"github.com/roach88/litesync/internal/row"
)

// Engine wraps one SQLite database file.
//
// Thread-safety model:
//   - Exec, Query, QueryRows, Commit, Rollback: safe from any goroutine; every
//     statement is serialized by the engine mutex
//   - Exec, Commit, Rollback, EnsureIndex, InstallTriggers and Close also take
//     the write lock, which Exec holds until its listeners have returned.
//     Listeners may read through the engine but must not call those methods.
//   - SyncWith: drives both engines sequentially from the calling goroutine
//
// Statements run inside a single open transaction which is begun lazily on the
// first statement and ended only by Commit or Rollback. The engine never
// auto-commits.
type Engine struct {
	path string
	db   *sql.DB

	// writeMu orders writers and transaction ends; acquired before mu.
	writeMu sync.Mutex
	mu      sync.Mutex
	tx      *sql.Tx
	closed  bool

	// tracking is set once the change log exists in the file, which is when
	// Exec must drain it after every statement.
	tracking bool

	stream         *changestream.Stream
	clock          *changestream.Clock
	merger         Merger
	resolver       Resolver
	tableResolvers map[string]Resolver
	logQueries     bool
	logger         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueryLogging logs every statement's SQL text and duration at INFO.
func WithQueryLogging() Option {
	return func(e *Engine) {
		e.logQueries = true
	}
}

// WithStream publishes change events to s instead of a private stream.
func WithStream(s *changestream.Stream) Option {
	return func(e *Engine) {
		e.stream = s
	}
}

// WithMerger sets how a conflict winner is combined with the loser
// (default OverwriteMerger).
func WithMerger(m Merger) Option {
	return func(e *Engine) {
		e.merger = m
	}
}

// WithResolver sets the default conflict resolver (default LastWriteWins).
func WithResolver(r Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithTableResolver overrides the conflict resolver for a single table.
func WithTableResolver(table string, r Resolver) Option {
	return func(e *Engine) {
		e.tableResolvers[table] = r
	}
}

// WithLogger sets the engine logger (default slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// Open opens (creating if needed) the SQLite database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for cross-process lock contention
//
// If the file already carries a litesync change log (triggers persist in the
// file), change delivery resumes immediately.
func Open(path string, opts ...Option) (*Engine, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: the engine's transaction owns it for its whole lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	e := &Engine{
		path:           path,
		db:             db,
		clock:          changestream.NewClock(),
		tableResolvers: make(map[string]Resolver),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.stream == nil {
		e.stream = changestream.New()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.merger == nil {
		e.merger = OverwriteMerger{Logger: e.logger}
	}
	if e.resolver == nil {
		e.resolver = LastWriteWins{}
	}

	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", changeLogTable,
	).Scan(&n); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to inspect change log: %w", err)
	}
	e.tracking = n > 0

	return e, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Path returns the database path the engine was opened with.
func (e *Engine) Path() string {
	return e.path
}

// Stream returns the change stream row mutations are published to.
func (e *Engine) Stream() *changestream.Stream {
	return e.stream
}

// Close rolls back any open transaction and closes the database.
func (e *Engine) Close() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true
	if e.tx != nil {
		_ = e.tx.Rollback()
		e.tx = nil
	}
	return e.db.Close()
}

// execSavepoint brackets each tracked statement so a listener error can undo it.
const execSavepoint = "litesync_exec"

// Exec runs a statement inside the engine's open transaction.
//
// The engine mutex is held only around the statement itself (and the drain of
// any change-log rows it produced). Resulting change events are then published
// synchronously; the first listener error is returned as Exec's error and the
// statement is rolled back to the savepoint taken before it. Earlier
// statements in the open transaction are kept.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	res, events, err := e.execLocked(ctx, query, args)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return res, nil
	}

	pubErr := e.publish(events)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.endSavepointLocked(ctx, pubErr != nil); err != nil {
		if pubErr != nil {
			e.logger.Error("undo statement after listener error", "db", e.path, "error", err)
			return nil, pubErr
		}
		return nil, err
	}
	if pubErr != nil {
		return nil, pubErr
	}
	return res, nil
}

// execLocked runs query and drains the change log. When it returns events, the
// statement's savepoint is still open and the caller must end it.
func (e *Engine) execLocked(ctx context.Context, query string, args []any) (sql.Result, []changestream.ChangeEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.txLocked(ctx)
	if err != nil {
		return nil, nil, err
	}

	if !e.tracking {
		start := time.Now()
		res, err := tx.ExecContext(ctx, query, args...)
		e.observe(query, start)
		if err != nil {
			return nil, nil, fmt.Errorf("exec: %w", err)
		}
		return res, nil, nil
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+execSavepoint); err != nil {
		return nil, nil, fmt.Errorf("savepoint: %w", err)
	}

	start := time.Now()
	res, err := tx.ExecContext(ctx, query, args...)
	e.observe(query, start)
	if err != nil {
		e.abandonSavepointLocked(ctx)
		return nil, nil, fmt.Errorf("exec: %w", err)
	}

	events, err := e.drainLocked(ctx, tx)
	if err != nil {
		e.abandonSavepointLocked(ctx)
		return nil, nil, err
	}
	if len(events) == 0 {
		if err := e.endSavepointLocked(ctx, false); err != nil {
			return nil, nil, err
		}
	}
	return res, events, nil
}

// endSavepointLocked releases the statement savepoint, first rolling back to
// it when undo is set.
func (e *Engine) endSavepointLocked(ctx context.Context, undo bool) error {
	if e.tx == nil {
		return errClosed
	}
	ctx = context.WithoutCancel(ctx)
	if undo {
		if _, err := e.tx.ExecContext(ctx, "ROLLBACK TO "+execSavepoint); err != nil {
			return fmt.Errorf("rollback to savepoint: %w", err)
		}
	}
	if _, err := e.tx.ExecContext(ctx, "RELEASE "+execSavepoint); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

// abandonSavepointLocked undoes a statement that failed. Some SQLite errors
// already rolled back the whole transaction, in which case the savepoint is
// gone and the error is only logged.
func (e *Engine) abandonSavepointLocked(ctx context.Context) {
	if err := e.endSavepointLocked(ctx, true); err != nil {
		e.logger.Debug("statement savepoint not released", "db", e.path, "error", err)
	}
}

// Query runs a query inside the engine's open transaction. The mutex is not
// held while the caller consumes the rows. Callers must close the rows before
// calling Commit or Rollback.
func (e *Engine) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.txLocked(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := tx.QueryContext(ctx, query, args...)
	e.observe(query, start)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	return rows, nil
}

// QueryRows runs a query and reads every result row into memory.
func (e *Engine) QueryRows(ctx context.Context, query string, args ...any) ([]row.Row, error) {
	rows, err := e.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// Commit commits the open transaction, if any.
func (e *Engine) Commit() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitLocked()
}

// Rollback discards the open transaction, if any.
func (e *Engine) Rollback() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	if err := tx.Rollback(); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (e *Engine) commitLocked() error {
	if e.tx == nil {
		return nil
	}
	tx := e.tx
	e.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// txLocked returns the open transaction, beginning one if needed.
// The transaction outlives the request that started it, so it is detached
// from the caller's cancellation.
func (e *Engine) txLocked(ctx context.Context) (*sql.Tx, error) {
	if e.closed {
		return nil, errClosed
	}
	if e.tx != nil {
		return e.tx, nil
	}
	tx, err := e.db.BeginTx(context.WithoutCancel(ctx), nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	e.tx = tx
	return tx, nil
}

func (e *Engine) observe(query string, start time.Time) {
	elapsed := time.Since(start)
	metrics.QueryDurationSeconds.Observe(elapsed.Seconds())
	if e.logQueries {
		e.logger.Info("query", "db", e.path, "duration", elapsed, "sql", query)
	}
}

// querier is satisfied by *sql.Tx and by *Engine.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// QueryContext is Query under the name database/sql uses, so the engine can
// stand in for a *sql.Tx in read helpers.
func (e *Engine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.Query(ctx, query, args...)
}

// tableColumns returns table's column names in declaration order.
func tableColumns(ctx context.Context, q querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(table)))
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	info, err := scanRows(rows)
	if err != nil {
		return nil, fmt.Errorf("table info %s: %w", table, err)
	}
	cols := make([]string, 0, len(info))
	for _, c := range info {
		if name, ok := c["name"].(string); ok {
			cols = append(cols, name)
		}
	}
	return cols, nil
}

// selectRaw builds a SELECT of cols from table that returns every value in
// its stored class. The driver converts by declared type (DATETIME text and
// integers become time.Time, BOOLEAN becomes bool); unary plus is a no-op in
// SQLite that drops the declared type, so values reach the caller unchanged
// and are written back byte for byte.
func selectRaw(table string, cols []string) string {
	exprs := make([]string, len(cols))
	for i, c := range cols {
		exprs[i] = "+" + quote(c) + " AS " + quote(c)
	}
	return "SELECT " + strings.Join(exprs, ", ") + " FROM " + quote(table)
}

// scanRows reads all rows into column→value maps and closes rows.
func scanRows(rows *sql.Rows) ([]row.Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	var out []row.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r := make(row.Row, len(cols))
		for i, c := range cols {
			r[c] = vals[i]
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
