package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/config"
	"github.com/roach88/litesync/internal/logging"
)

// RootOptions holds global flags for all commands, and the configuration
// they resolve to once the command starts.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	LogFile    string

	Config *config.Config

	logCloser io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the litesync CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

// Execute runs the litesync CLI with ctx and closes the log file afterwards.
// cobra skips PersistentPostRunE when a command fails, so teardown also runs
// here.
func Execute(ctx context.Context) error {
	cmd, opts := newRootCommand()
	return runRoot(ctx, cmd, opts)
}

func runRoot(ctx context.Context, cmd *cobra.Command, opts *RootOptions) (err error) {
	defer func() {
		if cerr := opts.teardown(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return cmd.ExecuteContext(ctx)
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "litesync",
		Short: "litesync - bidirectional SQLite sync",
		Long: `Keep pairs of local SQLite databases converged.

litesync diffs every table with an id column between two database files,
copies rows that exist on one side only and resolves rows that differ by
timestamp (updated_at, then modified_at). Every run is recorded in a journal
database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.teardown()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (.yaml, .yml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "log file (default from config, litesync.log)")

	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewTriggersCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	return cmd, opts
}

// setup validates global flags, loads configuration and installs logging.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, o.Format) {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.LogFile != "" {
		cfg.LogFile = o.LogFile
	}
	o.Config = cfg

	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	_, closer, err := logging.Setup(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Level:      level,
		Stderr:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up logging", err)
	}
	o.logCloser = closer
	return nil
}

func (o *RootOptions) teardown() error {
	if o.logCloser == nil {
		return nil
	}
	err := o.logCloser.Close()
	o.logCloser = nil
	return err
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
