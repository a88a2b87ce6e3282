package cdb

import (
	"context"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// PatchFunc patches a single entry in place
type PatchFunc func(ctx context.Context, entry *Entry) error

// Process patches every entry using up to jobs workers.
// newWorker is called once per worker, so each worker may own state such as
// a private probe cache. Entries are patched in place and keep their order.
// The first error stops dispatch and is returned.
func Process(ctx context.Context, entries []Entry, jobs int, newWorker func() PatchFunc) error {
	if jobs < 1 {
		jobs = runtime.NumCPU()
	}

	jobs = min(jobs, len(entries))

	var next atomic.Int64
	eg, gctx := errgroup.WithContext(ctx)
	for range jobs {
		patch := newWorker()
		eg.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(entries) {
					return nil
				}

				select {
				case <-gctx.Done():
					return context.Cause(gctx)
				default:
				}

				if err := patch(gctx, &entries[i]); err != nil {
					return err
				}
			}
		})
	}

	return eg.Wait()
}
