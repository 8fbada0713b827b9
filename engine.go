package distcp

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// transferEngine runs the per-file state machine of §4.E for one
// FileTuple against two independent RemoteFS capabilities — srcFS and
// dstFS may be different clusters entirely, mirroring the original
// WebHDFSDistClient's separate src/dst client objects. dirLock
// serializes PREP_DIRS across workers (the process-wide
// dirCreationLock); progressLock serializes ProgressSink calls if the
// sink isn't itself thread-safe (the process-wide progressLock). Both
// are scoped to a single Copy invocation by the Concurrency Harness
// that owns them.
type transferEngine struct {
	srcFS        RemoteFS
	dstFS        RemoteFS
	opts         TransferOptions
	sink         ProgressSink
	dirLock      *sync.Mutex
	progressLock *sync.Mutex
	cancel       CancellationToken
}

func (e *transferEngine) progress(src Path, nbytes int64) {
	e.progressLock.Lock()
	defer e.progressLock.Unlock()
	e.sink.Progress(src, nbytes)
}

// run drives tuple through START -> ... -> DONE and never panics out:
// any failure becomes a FAILED TransferResult. A single progress(src,
// -1) completion call is guaranteed before run returns, whether the
// tuple was copied, skipped, or failed (§6, §8 invariant 4): whichever
// path already delivered it marks delivered via progressDone, and the
// deferred guard below covers every path that didn't.
func (e *transferEngine) run(ctx context.Context, tuple FileTuple) (result TransferResult) {
	progressDone := new(bool)
	defer func() {
		if r := recover(); r != nil {
			result = TransferResult{
				Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: FAILED,
				Err: fmt.Errorf("panic in transfer: %v", r),
			}
		}
		if !*progressDone {
			e.progress(tuple.SrcFile, -1)
		}
	}()

	if e.cancel.Cancelled() {
		return TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: FAILED,
			Err: newError(ErrorKindCancelled, "cancelled before start")}
	}

	dstStatus, err := e.dstFS.Status(ctx, tuple.DstFile, false)
	if err != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, err, "status %s", tuple.DstFile))
	}

	if dstStatus == nil {
		result = e.stageAndStream(ctx, tuple, tuple.DstFile, progressDone)
		if result.Outcome == COPIED && e.opts.Preserve && !e.opts.DryRun {
			if err := e.preserve(ctx, tuple.SrcFile, tuple.DstFile); err != nil {
				return e.fail(tuple, err)
			}
		}
		return result
	}

	if !e.opts.Overwrite {
		return e.fail(tuple, newError(ErrorKindDestinationExists, "destination %s already exists", tuple.DstFile))
	}

	if e.opts.Checksum {
		skip, err := shouldSkip(ctx, e.srcFS, e.dstFS, tuple.SrcFile, tuple.DstFile)
		if err != nil {
			return e.fail(tuple, err)
		}
		if skip {
			return e.skipped(ctx, tuple, progressDone)
		}
	}

	stage := tuple.DstFile.Dir().Join(fmt.Sprintf("%s.temp-%d-%s", tuple.DstFile.Base(), time.Now().Unix(), uuid.New().String()[:8]))
	result = e.stageAndStream(ctx, tuple, stage, progressDone)
	if result.Outcome != COPIED || e.opts.DryRun {
		return result
	}

	if err := e.dstFS.Delete(ctx, tuple.DstFile); err != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, err, "delete %s before replace", tuple.DstFile))
	}
	if err := e.dstFS.Rename(ctx, stage, tuple.DstFile); err != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, err, "rename %s to %s", stage, tuple.DstFile))
	}
	Debugf(tuple.SrcFile, "copy of %s to %s complete via stage %s", tuple.SrcFile, tuple.DstFile, stage)

	if e.opts.Preserve {
		if err := e.preserve(ctx, tuple.SrcFile, tuple.DstFile); err != nil {
			return e.fail(tuple, err)
		}
	}
	return result
}

// skipped drives the progress callback to completion for bookkeeping
// even though no bytes move, per the "Skipped accounting" rule in §4.E.
func (e *transferEngine) skipped(ctx context.Context, tuple FileTuple, progressDone *bool) TransferResult {
	srcStatus, err := e.srcFS.Status(ctx, tuple.SrcFile, true)
	if err != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, err, "status %s", tuple.SrcFile))
	}
	e.progress(tuple.SrcFile, srcStatus.Length)
	e.progress(tuple.SrcFile, -1)
	*progressDone = true
	return TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: SKIPPED, Bytes: srcStatus.Length}
}

// stageAndStream runs PREP_DIRS then STREAM, writing to stage (which is
// either the final destination, when absent, or a temp sibling).
// progressDone is shared with run's completion guard: whichever branch
// here delivers progress(src, -1) itself marks it done so the guard
// doesn't double-deliver.
func (e *transferEngine) stageAndStream(ctx context.Context, tuple FileTuple, stage Path, progressDone *bool) TransferResult {
	if e.opts.DryRun {
		srcStatus, err := e.srcFS.Status(ctx, tuple.SrcFile, true)
		if err != nil {
			return e.fail(tuple, wrapError(ErrorKindRPC, err, "status %s", tuple.SrcFile))
		}
		e.progress(tuple.SrcFile, srcStatus.Length)
		e.progress(tuple.SrcFile, -1)
		*progressDone = true
		return TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: COPIED, Bytes: srcStatus.Length}
	}

	if err := e.prepDirs(ctx, stage, tuple.root); err != nil {
		return e.fail(tuple, err)
	}

	if e.cancel.Cancelled() {
		return e.fail(tuple, newError(ErrorKindCancelled, "cancelled before stream"))
	}

	var writeOpts WriteOptions
	if e.opts.Preserve {
		srcStatus, err := e.srcFS.Status(ctx, tuple.SrcFile, true)
		if err != nil {
			return e.fail(tuple, wrapError(ErrorKindRPC, err, "status %s", tuple.SrcFile))
		}
		writeOpts.Replication = srcStatus.Replication
		writeOpts.BlockSize = srcStatus.BlockSize
	}

	producer, err := e.srcFS.Read(ctx, tuple.SrcFile, e.opts.ChunkSize)
	if err != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, err, "read %s", tuple.SrcFile))
	}
	wrapped := &progressProducer{inner: producer, src: tuple.SrcFile, engine: e, cancel: e.cancel, done: progressDone}

	writeErr := e.dstFS.Write(ctx, stage, wrapped, writeOpts)
	closeErr := producer.Close()
	if writeErr != nil {
		return e.fail(tuple, wrapError(ErrorKindRPC, writeErr, "write %s", stage))
	}
	if closeErr != nil {
		Debugf(tuple.SrcFile, "error closing reader for %s: %v", tuple.SrcFile, closeErr)
	}
	if !wrapped.completed {
		wrapped.finish()
	}
	if wrapped.cancelled {
		return e.fail(tuple, newError(ErrorKindCancelled, "cancelled mid-stream copying %s", tuple.SrcFile))
	}

	return TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: COPIED, Bytes: wrapped.total}
}

// prepDirs ensures every ancestor of stage exists on the destination,
// serialized by dirLock across workers writing into sibling paths
// (§4.E, §5).
func (e *transferEngine) prepDirs(ctx context.Context, stage Path, root RootMapping) error {
	e.dirLock.Lock()
	defer e.dirLock.Unlock()

	parent := stage.Dir()
	segments := parent.Segments()
	cur := Path("/")
	for _, seg := range segments {
		cur = cur.Join(seg)
		status, err := e.dstFS.Status(ctx, cur, false)
		if err != nil {
			return wrapError(ErrorKindRPC, err, "status %s", cur)
		}
		if status != nil {
			continue
		}
		Debugf(cur, "parent directory %s does not exist, creating", cur)
		if err := e.dstFS.Makedirs(ctx, cur); err != nil {
			return wrapError(ErrorKindRPC, err, "makedirs %s", cur)
		}
		if e.opts.Preserve {
			srcDir := root.SrcRoot.Join(cur.Relative(root.DstRoot))
			if cur == root.DstRoot {
				srcDir = root.SrcRoot
			}
			if err := e.preserveDir(ctx, srcDir, cur); err != nil {
				Debugf(cur, "preserving attributes on created directory %s failed: %v", cur, err)
			}
		}
	}
	return nil
}

// preserve replicates owner, group, permission, times, and (for a FILE)
// replication from src onto dst after publication.
func (e *transferEngine) preserve(ctx context.Context, src, dst Path) error {
	srcStatus, err := e.srcFS.Status(ctx, src, true)
	if err != nil {
		return wrapError(ErrorKindRPC, err, "status %s", src)
	}
	if err := e.dstFS.SetOwner(ctx, dst, srcStatus.Owner, srcStatus.Group); err != nil {
		return wrapError(ErrorKindRPC, err, "set owner on %s", dst)
	}
	if err := e.dstFS.SetPermission(ctx, dst, srcStatus.Permission); err != nil {
		return wrapError(ErrorKindRPC, err, "set permission on %s", dst)
	}
	if err := e.dstFS.SetTimes(ctx, dst, srcStatus.AccessTime, srcStatus.ModificationTime); err != nil {
		return wrapError(ErrorKindRPC, err, "set times on %s", dst)
	}
	if srcStatus.Type == FILE {
		if err := e.dstFS.SetReplication(ctx, dst, srcStatus.Replication); err != nil {
			return wrapError(ErrorKindRPC, err, "set replication on %s", dst)
		}
	}
	return nil
}

// preserveDir is preserve restricted to directory attributes (no
// replication), used when a directory is created lazily during PREP_DIRS.
func (e *transferEngine) preserveDir(ctx context.Context, src, dst Path) error {
	srcStatus, err := e.srcFS.Status(ctx, src, true)
	if err != nil {
		return wrapError(ErrorKindRPC, err, "status %s", src)
	}
	if err := e.dstFS.SetOwner(ctx, dst, srcStatus.Owner, srcStatus.Group); err != nil {
		return wrapError(ErrorKindRPC, err, "set owner on %s", dst)
	}
	if err := e.dstFS.SetPermission(ctx, dst, srcStatus.Permission); err != nil {
		return wrapError(ErrorKindRPC, err, "set permission on %s", dst)
	}
	return e.dstFS.SetTimes(ctx, dst, srcStatus.AccessTime, srcStatus.ModificationTime)
}

func (e *transferEngine) fail(tuple FileTuple, err error) TransferResult {
	Errorf(tuple.SrcFile, "failed copying %s to %s: %v", tuple.SrcFile, tuple.DstFile, err)
	return TransferResult{Src: tuple.SrcFile, Dst: tuple.DstFile, Outcome: FAILED, Err: err}
}

// progressProducer wraps a ChunkProducer: after every chunk it invokes
// progress(src, totalBytesSoFar); when the producer ends it invokes
// progress(src, -1) exactly once, per STREAM in §4.E. done is the same
// flag run's completion guard checks, so a successful stream doesn't
// also get a redundant completion call from that guard.
type progressProducer struct {
	inner     ChunkProducer
	src       Path
	engine    *transferEngine
	cancel    CancellationToken
	done      *bool
	total     int64
	completed bool
	cancelled bool
}

func (p *progressProducer) Next(ctx context.Context) (Chunk, error) {
	if p.cancel.Cancelled() {
		p.cancelled = true
		p.finish()
		return nil, io.EOF
	}
	chunk, err := p.inner.Next(ctx)
	if err == io.EOF {
		p.finish()
		return nil, io.EOF
	}
	if err != nil {
		return nil, err
	}
	p.total += int64(len(chunk))
	p.engine.progress(p.src, p.total)
	return chunk, nil
}

func (p *progressProducer) Close() error { return nil }

func (p *progressProducer) finish() {
	if p.completed {
		return
	}
	p.completed = true
	p.engine.progress(p.src, -1)
	if p.done != nil {
		*p.done = true
	}
}
