package diskidx

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
)

// Record is one (attribute value, heap position) pair fed to Build.
type Record struct {
	Key      any
	Position Position
}

// BuildStats summarizes a bulk build.
type BuildStats struct {
	Inserted int
	// Skipped counts records rejected with ErrDuplicateKey.
	Skipped  int
	Duration time.Duration
}

// Records yields keys[i] at position i.
func Records[K any](keys []K) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for i, k := range keys {
			if !yield(Record{Key: k, Position: Position(i)}) {
				return
			}
		}
	}
}

// Build inserts records into x in sequence order. Records an index rejects
// as duplicates are skipped and counted; any other error stops the build.
// The index keeps every record inserted before the error.
func Build(ctx context.Context, x *Index, records iter.Seq[Record]) (BuildStats, error) {
	start := time.Now()
	stats, err := build(ctx, x, records)
	stats.Duration = time.Since(start)

	x.metrics.RecordBuild(stats.Inserted, stats.Skipped, stats.Duration)
	x.logger.LogBuild(ctx, stats, err)
	return stats, err
}

func build(ctx context.Context, x *Index, records iter.Seq[Record]) (BuildStats, error) {
	var stats BuildStats
	for r := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		err := translateError(x.engine.Insert(r.Key, r.Position))
		switch {
		case err == nil:
			stats.Inserted++
		case errors.Is(err, ErrDuplicateKey):
			stats.Skipped++
		default:
			return stats, fmt.Errorf("diskidx: build record at position %d: %w", r.Position, err)
		}
	}
	return stats, nil
}

// BuildJob pairs an index with the records to load into it.
type BuildJob struct {
	Index   *Index
	Records iter.Seq[Record]
}

// BuildAll runs one Build per job concurrently. Each job holds a background
// slot of its index's resource controller while it runs. The first failure
// cancels the remaining jobs; stats[i] belongs to jobs[i].
func BuildAll(ctx context.Context, jobs []BuildJob) ([]BuildStats, error) {
	seen := make(map[*Index]bool, len(jobs))
	for i, j := range jobs {
		if j.Index == nil || j.Records == nil {
			return nil, fmt.Errorf("%w: job %d has no index or records", ErrInvalidArgument, i)
		}
		if seen[j.Index] {
			return nil, fmt.Errorf("%w: index %s appears in two jobs", ErrInvalidArgument, j.Index.Path())
		}
		seen[j.Index] = true
	}

	stats := make([]BuildStats, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, j := range jobs {
		g.Go(func() error {
			rc := j.Index.resource
			if err := rc.AcquireBackground(gctx); err != nil {
				return err
			}
			defer rc.ReleaseBackground()

			var err error
			stats[i], err = Build(gctx, j.Index, j.Records)
			return err
		})
	}
	return stats, g.Wait()
}
