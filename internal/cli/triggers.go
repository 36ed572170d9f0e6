package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/engine"
)

// TriggersOptions holds flags for the triggers command.
type TriggersOptions struct {
	*RootOptions
	All bool
}

// NewTriggersCommand creates the triggers command.
func NewTriggersCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggersOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "triggers <db> [<table>...]",
		Short: "Install change-notification triggers",
		Long: `Install insert, update and delete triggers on the given tables. The
triggers record changes in the database file, so every engine that later
opens it publishes change events.

With no tables, the tables listed in the config file are used; --all
installs triggers on every table with an id column.

Examples:
  litesync triggers app.db items notes
  litesync triggers app.db --all`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTriggers(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.All, "all", false, "install on every user table")

	return cmd
}

func runTriggers(opts *TriggersOptions, path string, tables []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmd.Context()

	e, err := engine.Open(path)
	if err != nil {
		return f.Failure(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer e.Close()

	switch {
	case opts.All:
		tables, err = e.Tables(ctx)
		if err != nil {
			return f.Failure(WrapExitError(ExitFailure, "failed to list tables", err))
		}
		// Tables without an id column cannot be re-read by id.
		tables, err = tablesWithID(cmd, e, tables)
		if err != nil {
			return f.Failure(WrapExitError(ExitFailure, "failed to inspect tables", err))
		}
		if err := e.Rollback(); err != nil {
			return f.Failure(WrapExitError(ExitFailure, "failed to end read", err))
		}
	case len(tables) == 0:
		tables = opts.Config.Triggers
	}
	if len(tables) == 0 {
		return f.Failure(NewExitError(ExitCommandError, "no tables given and none configured"))
	}

	for _, table := range tables {
		if err := e.InstallTriggers(ctx, table); err != nil {
			return f.Failure(WrapExitError(ExitFailure, fmt.Sprintf("failed to install triggers on %s", table), err))
		}
	}

	return f.Result(tables, func(w io.Writer) {
		for _, t := range tables {
			fmt.Fprintf(w, "triggers installed on %s\n", t)
		}
	})
}

func tablesWithID(cmd *cobra.Command, e *engine.Engine, tables []string) ([]string, error) {
	var out []string
	for _, t := range tables {
		rows, err := e.QueryRows(cmd.Context(), `SELECT 1 FROM pragma_table_info(?) WHERE name = 'id'`, t)
		if err != nil {
			return nil, err
		}
		if len(rows) > 0 {
			out = append(out, t)
		}
	}
	return out, nil
}
