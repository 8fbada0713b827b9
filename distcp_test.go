package distcp_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hdfsops/distcp"
	"github.com/hdfsops/distcp/memfs"
)

func defaultOpts() distcp.TransferOptions {
	return distcp.TransferOptions{ChunkSize: 64}
}

// Scenario 1: single file to nonexistent destination.
func TestCopySingleFileToNewDestination(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	content := make([]byte, 1024)
	src.WriteFile("/a/x.bin", content)
	dst.Mkdir("/b")

	summary, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/y.bin", defaultOpts(), nil, nil)
	require.NoError(t, err)

	require.Len(t, summary.Results, 1)
	assert.Equal(t, distcp.COPIED, summary.Results[0].Outcome)
	assert.Equal(t, distcp.Path("/a/x.bin"), summary.Results[0].Src)
	assert.Equal(t, distcp.Path("/b/y.bin"), summary.Results[0].Dst)
	assert.EqualValues(t, 1, summary.Expected.Count)
	assert.EqualValues(t, 1024, summary.Expected.Bytes)
	assert.EqualValues(t, 1, summary.Copied.Count)
	assert.EqualValues(t, 1024, summary.Copied.Bytes)
	assert.Equal(t, distcp.Successful, summary.Outcome)

	got, ok := dst.ReadFile("/b/y.bin")
	require.True(t, ok)
	assert.Equal(t, content, got)
}

// Scenario 2: single file to existing directory.
func TestCopySingleFileToExistingDirectory(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("hello"))
	dst.Mkdir("/b")

	summary, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b", defaultOpts(), nil, nil)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, distcp.Path("/b/x.bin"), summary.Results[0].Dst)
	assert.Equal(t, distcp.COPIED, summary.Results[0].Outcome)
	assert.True(t, dst.Exists("/b/x.bin"))
}

// Scenario 3: directory tree, overwrite disabled, destination present.
func TestCopyDirectoryDestinationExistsNoOverwrite(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/f1.bin", []byte("1"))
	src.WriteFile("/a/sub/f2.bin", []byte("2"))
	dst.Mkdir("/b/a")

	_, err := distcp.Copy(ctx, src, dst, "/a", "/b", defaultOpts(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, distcp.ErrorKindDestinationExists, distcp.KindOf(err))
}

// Scenario 4: checksum-based skip.
func TestCopyChecksumSkip(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	content := []byte("identical content")
	src.WriteFile("/a/x.bin", content)
	dst.Mkdir("/b")
	dst.WriteFile("/b/x.bin", content)

	var events []struct {
		nbytes int64
	}
	sink := distcp.ProgressSinkFunc(func(p distcp.Path, n int64) {
		events = append(events, struct{ nbytes int64 }{n})
	})

	opts := defaultOpts()
	opts.Overwrite = true
	opts.Checksum = true

	summary, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, sink, nil)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, distcp.SKIPPED, summary.Results[0].Outcome)
	assert.EqualValues(t, 0, summary.Copied.Count)
	assert.EqualValues(t, 1, summary.Skipped.Count)

	require.Len(t, events, 2)
	assert.EqualValues(t, len(content), events[0].nbytes)
	assert.EqualValues(t, -1, events[1].nbytes)
}

// Scenario 5: glob collision.
func TestCopyGlobCollision(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/root/p/file.bin", []byte("p"))
	src.WriteFile("/root/q/file.bin", []byte("q"))
	dst.Mkdir("/out")

	_, err := distcp.Copy(ctx, src, dst, "/root/*/file.bin", "/out/file.bin", defaultOpts(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, distcp.ErrorKindCollision, distcp.KindOf(err))
}

// Scenario 6: partial failure — one tuple fails mid-transfer. Both
// tuples must still receive their progress completion call.
func TestCopyPartialFailureAggregatesOutcome(t *testing.T) {
	ctx := context.Background()
	src := failingSrc{FS: memfs.New(), failOn: "/a/bad.bin"}
	src.WriteFile("/a/good.bin", []byte("ok"))
	src.WriteFile("/a/bad.bin", []byte("boom"))
	dst := memfs.New()
	dst.Mkdir("/b")

	var mu sync.Mutex
	completions := make(map[distcp.Path]bool)
	sink := distcp.ProgressSinkFunc(func(p distcp.Path, n int64) {
		if n == -1 {
			mu.Lock()
			completions[p] = true
			mu.Unlock()
		}
	})

	summary, err := distcp.Copy(ctx, src, dst, "/a", "/b", defaultOpts(), sink, nil)
	require.NoError(t, err)

	require.Len(t, summary.Results, 2)
	assert.Equal(t, distcp.Failed, summary.Outcome)
	assert.EqualValues(t, 1, summary.Copied.Count)
	assert.EqualValues(t, 1, summary.Failed.Count)

	assert.True(t, completions["/a/good.bin"], "expected a progress completion for the copied tuple")
	assert.True(t, completions["/a/bad.bin"], "expected a progress completion for the failed tuple too")
}

// failingSrc fails Read for one specific path with an RpcError before any
// chunk is produced, leaving every other operation delegated to memfs.
type failingSrc struct {
	*memfs.FS
	failOn distcp.Path
}

func (f failingSrc) Read(ctx context.Context, p distcp.Path, chunkSize int) (distcp.ChunkProducer, error) {
	if p == f.failOn {
		return nil, distcp.RpcErrorf("simulated transport failure reading %s", p)
	}
	return f.FS.Read(ctx, p, chunkSize)
}

// Force-overwrite law: overwrite=true, checksum=false never skips.
func TestForceOverwriteNeverSkips(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	content := []byte("same bytes")
	src.WriteFile("/a/x.bin", content)
	dst.Mkdir("/b")
	dst.WriteFile("/b/x.bin", content)

	opts := defaultOpts()
	opts.Overwrite = true
	opts.Checksum = false

	summary, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.Skipped.Count)
	assert.EqualValues(t, 1, summary.Copied.Count)
}

// Preserve round-trip law.
func TestPreserveRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("payload"))
	dst.Mkdir("/b")

	opts := defaultOpts()
	opts.Preserve = true

	_, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, nil, nil)
	require.NoError(t, err)

	srcStatus, err := src.Status(ctx, "/a/x.bin", true)
	require.NoError(t, err)
	dstStatus, err := dst.Status(ctx, "/b/x.bin", true)
	require.NoError(t, err)

	assert.Equal(t, srcStatus.Owner, dstStatus.Owner)
	assert.Equal(t, srcStatus.Group, dstStatus.Group)
	assert.Equal(t, srcStatus.Permission, dstStatus.Permission)
	assert.Equal(t, srcStatus.Replication, dstStatus.Replication)
}

// Idempotence with checksum.
func TestIdempotentWithChecksum(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("stable content"))
	dst.Mkdir("/b")

	opts := defaultOpts()
	opts.Overwrite = true
	opts.Checksum = true

	first, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.Copied.Count)

	second, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, second.Copied.Count)
	assert.EqualValues(t, second.Expected.Count, second.Skipped.Count)
}

// InvalidOption on a non-positive chunk size.
func TestInvalidChunkSize(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("x"))

	_, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/y.bin", distcp.TransferOptions{ChunkSize: 0}, nil, nil)
	require.Error(t, err)
	assert.Equal(t, distcp.ErrorKindInvalidOption, distcp.KindOf(err))
}

// NoSourceMatch on an empty glob.
func TestNoSourceMatch(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()

	_, err := distcp.Copy(ctx, src, dst, "/nope/*.bin", "/b", defaultOpts(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, distcp.ErrorKindNoSourceMatch, distcp.KindOf(err))
}

// MissingDestinationParent when dst is absent and its parent is too.
func TestMissingDestinationParent(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("x"))

	_, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/nope/y.bin", defaultOpts(), nil, nil)
	require.Error(t, err)
	assert.Equal(t, distcp.ErrorKindMissingDestinationParent, distcp.KindOf(err))
}

// Exclude patterns drop matching source files from the plan entirely.
func TestExcludeDropsMatchedFiles(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/keep.bin", []byte("keep"))
	src.WriteFile("/a/skip.tmp", []byte("skip"))
	dst.Mkdir("/b")

	opts := defaultOpts()
	opts.Exclude = []string{"/a/*.tmp"}

	summary, err := distcp.Copy(ctx, src, dst, "/a", "/b", opts, nil, nil)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, distcp.Path("/a/keep.bin"), summary.Results[0].Src)
}

// DryRun reports without writing any bytes to the destination.
func TestDryRunDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	src := memfs.New()
	dst := memfs.New()
	src.WriteFile("/a/x.bin", []byte("payload"))
	dst.Mkdir("/b")

	opts := defaultOpts()
	opts.DryRun = true

	summary, err := distcp.Copy(ctx, src, dst, "/a/x.bin", "/b/x.bin", opts, nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Copied.Count)
	assert.False(t, dst.Exists("/b/x.bin"))
}
