package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/journal"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Journal string
	Limit   int
	RunID   string
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List recent sync runs from the journal",
		Long: `List recent sync runs recorded in the journal, newest first.

With --run, list the conflicts resolved during that run instead.

Examples:
  litesync events --limit 20
  litesync events --run 0190c7d2-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database (default from config)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", journal.DefaultListLimit, "number of events to list")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "list conflicts of this run")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	path := opts.Journal
	if path == "" {
		path = opts.Config.Journal
	}
	j, err := journal.Open(path)
	if err != nil {
		return f.Failure(WrapExitError(ExitCommandError, "failed to open journal", err))
	}
	defer j.Close()

	if opts.RunID != "" {
		conflicts, err := j.ListConflicts(cmd.Context(), opts.RunID)
		if err != nil {
			return f.Failure(WrapExitError(ExitCommandError, "failed to list conflicts", err))
		}
		return f.Result(conflicts, func(w io.Writer) {
			if len(conflicts) == 0 {
				fmt.Fprintf(w, "No conflicts recorded for run %s\n", opts.RunID)
				return
			}
			for _, c := range conflicts {
				fmt.Fprintf(w, "%s  %s id=%s winner=%s\n",
					c.Timestamp.Format("2006-01-02 15:04:05"), c.Table, c.RowID, c.Decision)
			}
		})
	}

	events, err := j.ListEvents(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Failure(WrapExitError(ExitCommandError, "failed to list events", err))
	}
	return f.Result(events, func(w io.Writer) {
		if len(events) == 0 {
			fmt.Fprintln(w, "No sync events recorded")
			return
		}
		for _, ev := range events {
			fmt.Fprintf(w, "%s  %-7s %s <-> %s  %s\n",
				ev.Timestamp.Format("2006-01-02 15:04:05"), ev.Status, ev.SourceDB, ev.TargetDB, ev.RunID)
			if ev.Detail != "" {
				fmt.Fprintf(w, "    %s\n", ev.Detail)
			}
		}
	})
}
