package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/litesync/internal/runner"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Interval    time.Duration
	Journal     string
	NoJournal   bool
	LogQueries  bool
	MetricsAddr string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [<a.db> <b.db>]",
		Short: "Synchronize databases whenever they change",
		Long: `Watch one or more database pairs and synchronize a pair whenever either
file changes. With no arguments, the pairs listed in the config file are
watched.

Failed runs are logged and retried on the next change check. Stop with Ctrl-C.

Examples:
  litesync watch a.db b.db --interval 500ms
  litesync watch --config litesync.yaml --metrics-addr :9090`,
		Args:          cobra.MatchAll(cobra.MaximumNArgs(2), validPairArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "polling interval (default from config, 1s)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database (default from config)")
	cmd.Flags().BoolVar(&opts.NoJournal, "no-journal", false, "do not record runs")
	cmd.Flags().BoolVar(&opts.LogQueries, "log-queries", false, "log every SQL statement with its duration")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	return cmd
}

func validPairArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		return fmt.Errorf("watch takes two database paths or none, got 1")
	}
	return nil
}

func runWatch(opts *WatchOptions, args []string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	var pairs []runner.Pair
	if len(args) == 2 {
		pairs = append(pairs, runner.Pair{A: args[0], B: args[1]})
	} else {
		for _, p := range opts.Config.Pairs {
			pairs = append(pairs, runner.Pair{A: p.A, B: p.B})
		}
	}
	if len(pairs) == 0 {
		return f.Failure(NewExitError(ExitCommandError, "no database pairs given and none configured"))
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = opts.Config.Interval
	}

	runOpts, closeJournal, err := opts.runOptions(opts.Journal, opts.NoJournal, opts.LogQueries)
	if err != nil {
		return f.Failure(err)
	}
	defer closeJournal()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsAddr := opts.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = opts.Config.MetricsAddr
	}
	if metricsAddr != "" {
		srv := serveMetrics(metricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	slog.Info("watch starting", "pairs", len(pairs), "interval", interval)
	err = runner.WatchPairs(ctx, pairs, runner.WatchOptions{Interval: interval, Options: runOpts})
	if err != nil {
		return f.Failure(WrapExitError(ExitFailure, "watch failed", err))
	}
	slog.Info("watch stopped")
	return nil
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", addr)
	return srv
}
