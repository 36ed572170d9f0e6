package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/config"
	"github.com/roach88/litesync/internal/engine"
)

// NewIndexCommand creates the index command.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <db> [<table> <column>]",
		Short: "Ensure secondary indexes exist",
		Long: `Create a secondary index on table(column) if it does not exist. With only
a database path, every index listed in the config file is ensured.

Examples:
  litesync index app.db items name
  litesync index app.db --config litesync.yaml`,
		Args: cobra.MatchAll(cobra.RangeArgs(1, 3), func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 {
				return fmt.Errorf("index needs both a table and a column")
			}
			return nil
		}),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(rootOpts, args, cmd)
		},
	}
	return cmd
}

func runIndex(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	indexes := opts.Config.Indexes
	if len(args) == 3 {
		indexes = []config.Index{{Table: args[1], Column: args[2]}}
	}
	if len(indexes) == 0 {
		return f.Failure(NewExitError(ExitCommandError, "no index given and none configured"))
	}

	e, err := engine.Open(args[0])
	if err != nil {
		return f.Failure(WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer e.Close()

	var created []string
	for _, idx := range indexes {
		if err := e.EnsureIndex(cmd.Context(), idx.Table, idx.Column); err != nil {
			return f.Failure(WrapExitError(ExitFailure,
				fmt.Sprintf("failed to index %s(%s)", idx.Table, idx.Column), err))
		}
		created = append(created, engine.IndexName(idx.Table, idx.Column))
	}

	return f.Result(created, func(w io.Writer) {
		for _, name := range created {
			fmt.Fprintf(w, "ensured %s\n", name)
		}
	})
}
