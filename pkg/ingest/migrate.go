package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
)

// MigrateResult counts what a migration pass did.
type MigrateResult struct {
	Scanned   int
	Rewritten int
	Malformed int
	// Misplaced records sit at a path their word would not map to.
	Misplaced int
}

// Migrate rewrites every record under root in the current encoding. Records
// already in that encoding are left untouched, so a second pass rewrites
// nothing. Malformed and misplaced files are logged and skipped.
func Migrate(ctx context.Context, root string, workers int, logger *log.Logger) (MigrateResult, error) {
	ds := store.NewDirStore(root)
	files, err := ds.Scan()
	if err != nil {
		return MigrateResult{}, fmt.Errorf("scan %s: %w", root, err)
	}

	var rewritten, malformed, misplaced int64
	var errOnce sync.Once
	var firstErr error

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}
	logf := func(format string, args ...interface{}) {
		if logger != nil {
			logger.Printf(format, args...)
		}
	}

	wp := NewWorkerPool(workers, workers*2)
	wp.Start(ctx)

	for _, f := range files {
		f := f
		err := wp.SubmitCtx(ctx, func(ctx context.Context) error {
			if want, err := ds.Path(f.Word); err != nil || want != f.Path {
				atomic.AddInt64(&misplaced, 1)
				logf("skipping misplaced record %s", f.Path)
				return nil
			}
			mods, err := store.ReadRecordFile(f.Path)
			if errors.Is(err, modifier.ErrMalformedRecord) {
				atomic.AddInt64(&malformed, 1)
				logf("skipping malformed record: %v", err)
				return nil
			}
			if err != nil {
				fail(err)
				return err
			}
			changed, err := store.RewriteIfChanged(f.Path, modifier.Merge(nil, mods))
			if err != nil {
				fail(err)
				return err
			}
			if changed {
				atomic.AddInt64(&rewritten, 1)
			}
			return nil
		})
		if err != nil {
			break
		}
	}
	wp.Close()

	res := MigrateResult{
		Scanned:   len(files),
		Rewritten: int(rewritten),
		Malformed: int(malformed),
		Misplaced: int(misplaced),
	}
	if firstErr != nil {
		return res, firstErr
	}
	return res, ctx.Err()
}
