// Package distcp implements the copy planner and transfer orchestrator
// for a distributed file-copy engine between two remote file systems
// reachable through a RemoteFS capability (§6). See SPEC_FULL.md for
// the full requirements this package implements.
package distcp

import (
	"context"
	"time"
)

// Copy expands srcPath (a glob pattern or a directory) on srcFS into a
// concrete set of files, resolves the destination mapping for each on
// dstFS, and executes the transfers concurrently. srcFS and dstFS may be
// the same cluster or two entirely independent ones — the core never
// assumes a shared namespace between them, mirroring the two-client
// design of the system this core replaces. Copy returns the Summary even
// when some tuples fail; it raises only on planner failures (§4.B) or
// invalid options (e.g. chunkSize <= 0).
func Copy(ctx context.Context, srcFS, dstFS RemoteFS, srcPath, dstPath Path, opts TransferOptions, sink ProgressSink, cancel CancellationToken) (Summary, error) {
	start := time.Now()

	if err := opts.validate(); err != nil {
		return Summary{}, err
	}
	if sink == nil {
		sink = noopSink{}
	}
	if cancel == nil {
		cancel = neverCancel{}
	}

	mappings, err := plan(ctx, srcFS, dstFS, srcPath, dstPath, opts.Overwrite)
	if err != nil {
		return Summary{}, err
	}

	tuples, err := expand(ctx, srcFS, mappings, opts.Exclude)
	if err != nil {
		return Summary{}, err
	}

	h := &harness{srcFS: srcFS, dstFS: dstFS, opts: opts, sink: sink, cancel: cancel}
	results := h.runAll(ctx, tuples)

	return aggregate(ctx, srcFS, srcPath, dstPath, results, start), nil
}
