package distcp

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxAutoWorkers bounds "one worker per file" (nThreads <= 0) so a huge
// tree doesn't spawn an unbounded number of goroutines; per §9 this is
// documented, not contractual beyond requiring the bound be >= nThreads
// when nThreads > 0.
const maxAutoWorkers = 256

// harness is the Concurrency Harness of §4.F: a bounded worker pool
// dispatching FileTuples to transferEngine.run, collecting
// TransferResults. dirCreationLock and progressLock are process-wide,
// scoped to one Copy call.
type harness struct {
	srcFS  RemoteFS
	dstFS  RemoteFS
	opts   TransferOptions
	sink   ProgressSink
	cancel CancellationToken

	dirLock      sync.Mutex
	progressLock sync.Mutex
}

// runAll dispatches every tuple to a worker running the Transfer
// Engine. A worker never panics out of the harness: transferEngine.run
// already recovers internally, so one bad file can't abort the job.
// Ordering across tuples is not guaranteed.
func (h *harness) runAll(ctx context.Context, tuples []FileTuple) []TransferResult {
	workers := h.opts.NThreads
	if workers <= 0 {
		workers = len(tuples)
		if workers > maxAutoWorkers {
			workers = maxAutoWorkers
		}
	}
	if workers < 1 {
		workers = 1
	}

	sem := semaphore.NewWeighted(int64(workers))
	results := make([]TransferResult, len(tuples))
	var wg sync.WaitGroup

	engine := &transferEngine{
		srcFS: h.srcFS, dstFS: h.dstFS, opts: h.opts, sink: h.sink,
		dirLock: &h.dirLock, progressLock: &h.progressLock, cancel: h.cancel,
	}

	for i, tuple := range tuples {
		if h.cancel.Cancelled() {
			results[i] = TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: FAILED,
				Err: newError(ErrorKindCancelled, "cancelled before dispatch")}
			engine.progress(tuple.SrcFile, -1)
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			// Context was cancelled while waiting for a slot; report the
			// remaining tuples as cancelled and stop dispatching.
			results[i] = TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: FAILED,
				Err: newError(ErrorKindCancelled, "cancelled waiting for a worker")}
			engine.progress(tuple.SrcFile, -1)
			continue
		}
		wg.Add(1)
		go func(i int, tuple FileTuple) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = engine.run(ctx, tuple)
		}(i, tuple)
	}
	wg.Wait()
	return results
}
