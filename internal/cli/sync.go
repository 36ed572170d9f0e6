package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/engine"
	"github.com/roach88/litesync/internal/journal"
	"github.com/roach88/litesync/internal/runner"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Journal    string
	NoJournal  bool
	LogQueries bool
}

// SyncResult is the sync command's output.
type SyncResult struct {
	RunID     string   `json:"run_id"`
	A         string   `json:"a"`
	B         string   `json:"b"`
	Tables    []string `json:"tables"`
	Skipped   []string `json:"skipped,omitempty"`
	CopiedToA int      `json:"copied_to_a"`
	CopiedToB int      `json:"copied_to_b"`
	Conflicts int      `json:"conflicts"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <a.db> <b.db>",
		Short: "Synchronize two databases once",
		Long: `Synchronize two SQLite databases once.

Every table with an id column is reconciled: rows present on one side are
copied to the other, rows that differ are resolved by last write wins.
Tables missing on one side are created from the other's definition.

Examples:
  litesync sync a.db b.db
  litesync sync a.db b.db --journal /tmp/journal.db --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database (default from config)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record the run")
	cmd.Flags().BoolVar(&opts.LogQueries, "log-queries", false, "log every SQL statement with its duration")

	return cmd
}

// runOptions builds the runner options shared by sync and watch. The
// returned closer releases the journal, if one was opened.
func (o *RootOptions) runOptions(journalPath string, noJournal, logQueries bool) ([]runner.Option, func(), error) {
	var opts []runner.Option
	closeFn := func() {}

	if logQueries || o.Config.LogQueries {
		opts = append(opts, runner.WithEngineOptions(engine.WithQueryLogging()))
	}

	if !noJournal {
		if journalPath == "" {
			journalPath = o.Config.Journal
		}
		j, err := journal.Open(journalPath)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		opts = append(opts, runner.WithJournal(j))
		closeFn = func() {
			if err := j.Close(); err != nil {
				slog.Error("error closing journal", "error", err)
			}
		}
	}
	return opts, closeFn, nil
}

func runSync(opts *SyncOptions, aPath, bPath string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	runOpts, closeJournal, err := opts.runOptions(opts.Journal, opts.NoJournal, opts.LogQueries)
	if err != nil {
		return f.Failure(err)
	}
	defer closeJournal()

	var runID string
	runOpts = append(runOpts, runner.WithLogHook(func(ev runner.Event) {
		runID = ev.RunID
	}))

	report, err := runner.Run(cmd.Context(), aPath, bPath, runOpts...)
	if err != nil {
		return f.Failure(WrapExitError(ExitFailure, "sync failed", err))
	}

	result := SyncResult{
		RunID:     runID,
		A:         aPath,
		B:         bPath,
		Tables:    report.Tables,
		Skipped:   report.Skipped,
		CopiedToA: report.CopiedToSelf,
		CopiedToB: report.CopiedToOther,
		Conflicts: len(report.Conflicts),
	}
	if result.Tables == nil {
		result.Tables = []string{}
	}

	return f.Result(result, func(w io.Writer) {
		fmt.Fprintf(w, "Synced %s <-> %s (run %s)\n", aPath, bPath, runID)
		fmt.Fprintf(w, "  tables:    %d\n", len(result.Tables))
		fmt.Fprintf(w, "  copied:    %d to a, %d to b\n", result.CopiedToA, result.CopiedToB)
		fmt.Fprintf(w, "  conflicts: %d\n", result.Conflicts)
		for _, s := range result.Skipped {
			fmt.Fprintf(w, "  skipped %s (no id column)\n", s)
		}
	})
}
