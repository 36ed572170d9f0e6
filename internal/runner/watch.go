package runner

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/litesync/internal/metrics"
)

// DefaultInterval is the polling interval used when WatchOptions.Interval is zero.
const DefaultInterval = time.Second

// WatchOptions configures Watch and WatchPairs.
type WatchOptions struct {
	// Interval between fingerprint checks.
	Interval time.Duration
	// Options are passed to every Run.
	Options []Option
}

// Pair names two databases kept in sync.
type Pair struct {
	A string
	B string
}

// fingerprint changes whenever a database file or its WAL is written.
type fingerprint struct {
	dbMod, walMod   time.Time
	dbSize, walSize int64
}

func stat(path string) (time.Time, int64, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, 0, nil
	}
	if err != nil {
		return time.Time{}, 0, err
	}
	return info.ModTime(), info.Size(), nil
}

func fingerprintOf(path string) (fingerprint, error) {
	var fp fingerprint
	var err error
	if fp.dbMod, fp.dbSize, err = stat(path); err != nil {
		return fingerprint{}, err
	}
	if fp.walMod, fp.walSize, err = stat(path + "-wal"); err != nil {
		return fingerprint{}, err
	}
	return fp, nil
}

// Watch runs a sync between aPath and bPath each time either file changes,
// until ctx is done. A missing file counts as unchanged until it appears.
//
// Failed runs are logged by Run and retried on the next tick. After a
// successful run the fingerprints are re-read so the run's own writes do not
// trigger another one.
func Watch(ctx context.Context, aPath, bPath string, wo WatchOptions) error {
	interval := wo.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	o := newOptions(wo.Options)

	lastA, lastB, err := fingerprints(aPath, bPath)
	if err != nil {
		return err
	}
	o.logger.Info("watching", "a", aPath, "b", bPath, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("watch stopped", "a", aPath, "b", bPath)
			return nil
		case <-ticker.C:
		}

		curA, curB, err := fingerprints(aPath, bPath)
		if err != nil {
			o.logger.Warn("stat failed", "a", aPath, "b", bPath, "error", err)
			continue
		}
		if curA == lastA && curB == lastB {
			continue
		}

		metrics.WatchTriggersTotal.Inc()
		if _, err := Run(ctx, aPath, bPath, wo.Options...); err != nil {
			continue
		}
		if lastA, lastB, err = fingerprints(aPath, bPath); err != nil {
			o.logger.Warn("stat failed", "a", aPath, "b", bPath, "error", err)
		}
	}
}

func fingerprints(aPath, bPath string) (fingerprint, fingerprint, error) {
	a, err := fingerprintOf(aPath)
	if err != nil {
		return fingerprint{}, fingerprint{}, err
	}
	b, err := fingerprintOf(bPath)
	if err != nil {
		return fingerprint{}, fingerprint{}, err
	}
	return a, b, nil
}

// WatchPairs watches every pair concurrently until ctx is done or one
// watcher fails to start.
func WatchPairs(ctx context.Context, pairs []Pair, wo WatchOptions) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, p := range pairs {
		p := p
		g.Go(func() error {
			return Watch(ctx, p.A, p.B, wo)
		})
	}
	return g.Wait()
}
