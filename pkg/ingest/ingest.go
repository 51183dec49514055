package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/japaniel/scrb/pkg/modifier"
	"github.com/japaniel/scrb/pkg/store"
)

// WorkerPoolInterface abstracts the worker pool so tests can inject failing implementations.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(Job) error
	// SubmitCtx attempts to enqueue a job but returns promptly if ctx is canceled.
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester copies a dictionary directory tree into the SQLite records table.
type Ingester struct {
	DB        *sql.DB
	BatchSize int
	// Logger reports malformed records. nil means no logging.
	Logger *log.Logger
	// OnProgress is called with the number of decoded files and the total.
	OnProgress func(current, total int)

	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// Result summarises one ingestion pass.
type Result struct {
	Files     int
	Records   int
	Malformed int
}

// NewIngester creates a new Ingester.
func NewIngester(conn *sql.DB) *Ingester {
	return &Ingester{
		DB:        conn,
		BatchSize: 50,
		Workers:   4,
	}
}

type decodedRecord struct {
	File store.RecordFile
	Mods []modifier.Modifier
	Err  error
}

// Ingest decodes every record under root on the worker pool and merges it
// into the database through a BatchWriter. Malformed files are counted and
// skipped; any other read or write failure aborts the pass.
func (ig *Ingester) Ingest(ctx context.Context, root string) (Result, error) {
	files, err := store.NewDirStore(root).Scan()
	if err != nil {
		return Result{}, fmt.Errorf("scan %s: %w", root, err)
	}
	res := Result{Files: len(files)}
	if len(files) == 0 {
		return res, nil
	}

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	var wp WorkerPoolInterface
	if ig.PoolFactory != nil {
		wp = ig.PoolFactory(workers, workers*2)
	} else {
		wp = NewWorkerPool(workers, workers*2)
	}
	resultCh := make(chan decodedRecord, workers*2)

	bw := NewBatchWriter(ig.DB, ig.BatchSize, 100*time.Millisecond)
	var merged int64

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wp.Start(ctx)

	consumerDone := make(chan error, 1)
	go func() {
		var firstErr error
		seen := 0
		for rec := range resultCh {
			if firstErr != nil {
				continue // drain so producers never block
			}
			seen++
			if ig.OnProgress != nil && (seen%ig.batchSize() == 0 || seen == len(files)) {
				ig.OnProgress(seen, len(files))
			}
			switch {
			case errors.Is(rec.Err, modifier.ErrMalformedRecord):
				res.Malformed++
				if ig.Logger != nil {
					ig.Logger.Printf("skipping malformed record: %v", rec.Err)
				}
				continue
			case rec.Err != nil:
				firstErr = rec.Err
				cancel()
				continue
			}
			if err := bw.SubmitMerge(rec.File.Word, rec.Mods, func() { atomic.AddInt64(&merged, 1) }); err != nil {
				firstErr = err
				cancel()
			}
		}
		consumerDone <- firstErr
	}()

	var submitErr error
	for _, f := range files {
		f := f
		job := func(ctx context.Context) error {
			mods, err := store.ReadRecordFile(f.Path)
			select {
			case resultCh <- decodedRecord{File: f, Mods: mods, Err: err}:
			case <-ctx.Done():
			}
			return err
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if err != ctx.Err() && err != ErrPoolClosed {
				submitErr = err
			}
			break
		}
	}

	// All senders are gone once the pool has closed.
	wp.Close()
	close(resultCh)
	consumerErr := <-consumerDone

	bwErr := bw.Close()
	res.Records = int(atomic.LoadInt64(&merged))

	switch {
	case submitErr != nil:
		return res, submitErr
	case consumerErr != nil:
		return res, consumerErr
	case bwErr != nil:
		return res, bwErr
	}
	return res, ctx.Err()
}

func (ig *Ingester) batchSize() int {
	if ig.BatchSize <= 0 {
		return 10
	}
	return ig.BatchSize
}
