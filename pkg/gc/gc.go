// Package gc tracks generations, the symlinks that keep build outputs alive,
// and sweeps them together with the backend's store collection.
//
// The live set is snapshotted before the backend collects. Outputs linked by
// builds that start after the snapshot are not protected and may be
// collected by the same run.
package gc

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/devenvgo/devenv/pkg/fsutil"
	"github.com/devenvgo/devenv/pkg/logger"
)

// Collector deletes everything from the store that is not reachable from live
type Collector interface {
	GC(ctx context.Context, live []string) error
}

// Report summarizes a collection run
type Report struct {
	Scanned         int
	RemovedDangling int
	RemovedLive     int
	Live            []string
	Duration        time.Duration
}

// Scan classifies every symlink in dir. Dangling links are returned by path,
// live ones by their canonical target. Entries that are not symlinks are
// ignored, and a missing dir is created empty.
func Scan(dir string) (live []string, dangling []string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create gc directory %s: %w", dir, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read gc directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.Type()&fs.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				dangling = append(dangling, path)
				continue
			}
			return nil, nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		target, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		live = append(live, target)
	}
	return live, dangling, nil
}

// Collect removes dangling generations from dir, asks the collector to
// reclaim everything except the live targets, and reports how many
// previously live generations disappeared during the collection.
func Collect(ctx context.Context, dir string, collector Collector, log logger.Logger) (*Report, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	start := time.Now()

	log.Info(fmt.Sprintf("Removing non-existing symlinks in %s", dir))
	live, dangling, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	for _, link := range dangling {
		if err := fsutil.RemoveIfExists(link); err != nil {
			return nil, err
		}
	}

	log.Info(fmt.Sprintf("Found %d active environments.", len(live)))
	log.Info(fmt.Sprintf("Deleted %d dangling environments (most likely due to previous GC).", len(dangling)))

	log.Info("Running garbage collection (this process will take some time)")
	if err := collector.GC(ctx, live); err != nil {
		return nil, fmt.Errorf("garbage collection failed: %w", err)
	}

	after, _, err := Scan(dir)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Scanned:         len(live) + len(dangling),
		RemovedDangling: len(dangling),
		RemovedLive:     countGone(live, after),
		Live:            live,
		Duration:        time.Since(start),
	}
	log.Success(fmt.Sprintf("Done. Successfully removed %d symlinks in %.2fs.",
		report.RemovedLive, report.Duration.Seconds()))
	return report, nil
}

func countGone(before, after []string) int {
	remaining := make(map[string]struct{}, len(after))
	for _, target := range after {
		remaining[target] = struct{}{}
	}
	gone := 0
	for _, target := range before {
		if _, ok := remaining[target]; !ok {
			gone++
		}
	}
	return gone
}
