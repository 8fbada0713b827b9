// Package webhdfs is the production distcp.RemoteFS implementation,
// wrapping a colinmarc/hdfs/v2 client against a WebHDFS-compatible
// namenode. This is the "external collaborator" §1 of SPEC_FULL.md
// names: the core package never imports it, it only consumes the
// distcp.RemoteFS interface this package satisfies.
package webhdfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/colinmarc/hdfs/v2"
	"github.com/hdfsops/distcp"
)

// Options configures a Client beyond the bare namenode address.
type Options struct {
	User              string
	ChecksumAlgorithm string // "xxh64" (default) or "md5"
}

// Client adapts *hdfs.Client to distcp.RemoteFS.
type Client struct {
	hc   *hdfs.Client
	opts Options
}

// Dial connects to the namenode at address and returns a Client bound
// to it, a thin adapter constructed once per remote and handed to the
// core as a capability.
func Dial(address string, opts Options) (*Client, error) {
	var hc *hdfs.Client
	var err error
	if opts.User != "" {
		hc, err = hdfs.NewClient(hdfs.ClientOptions{Addresses: []string{address}, User: opts.User})
	} else {
		hc, err = hdfs.New(address)
	}
	if err != nil {
		return nil, distcp.RpcErrorf("dial namenode %s: %v", address, err)
	}
	if opts.ChecksumAlgorithm == "" {
		opts.ChecksumAlgorithm = "xxh64"
	}
	return &Client{hc: hc, opts: opts}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() error { return c.hc.Close() }

func (c *Client) ResolvePath(_ context.Context, p distcp.Path) (distcp.Path, error) {
	return distcp.NormalizePath(string(p)), nil
}

func toFileStatus(info os.FileInfo) *distcp.FileStatus {
	status := &distcp.FileStatus{
		Type:             distcp.FILE,
		Length:           info.Size(),
		ModificationTime: info.ModTime(),
		Permission:       "0" + strconv.FormatInt(int64(info.Mode().Perm()), 8),
	}
	if info.IsDir() {
		status.Type = distcp.DIRECTORY
	}
	if fi, ok := info.(*hdfs.FileInfo); ok {
		status.Owner = fi.Owner()
		status.Group = fi.OwnerGroup()
		status.Replication = fi.Replication()
		status.AccessTime = fi.AccessTime()
	}
	return status
}

func (c *Client) Status(_ context.Context, p distcp.Path, strict bool) (*distcp.FileStatus, error) {
	info, err := c.hc.Stat(string(p))
	if err != nil {
		if os.IsNotExist(err) {
			if strict {
				return nil, distcp.RpcErrorf("File does not exist: %s", p)
			}
			return nil, nil
		}
		return nil, distcp.RpcErrorf("stat %s: %v", p, err)
	}
	return toFileStatus(info), nil
}

func (c *Client) Glob(_ context.Context, pattern distcp.Path) ([]distcp.Path, error) {
	matches, err := c.hc.Glob(string(pattern))
	if err != nil {
		return nil, distcp.RpcErrorf("glob %s: %v", pattern, err)
	}
	sort.Strings(matches)
	out := make([]distcp.Path, len(matches))
	for i, m := range matches {
		out[i] = distcp.NormalizePath(m)
	}
	return out, nil
}

func (c *Client) Walk(_ context.Context, root distcp.Path) ([]distcp.WalkEntry, error) {
	info, err := c.hc.Stat(string(root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, distcp.RpcErrorf("stat %s: %v", root, err)
	}
	if !info.IsDir() {
		return nil, nil
	}

	byDir := make(map[string]*distcp.WalkEntry)
	get := func(dir string) *distcp.WalkEntry {
		e, ok := byDir[dir]
		if !ok {
			e = &distcp.WalkEntry{Dir: distcp.NormalizePath(dir)}
			byDir[dir] = e
		}
		return e
	}
	get(string(root))

	walkErr := c.hc.Walk(string(root), func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == string(root) {
			return nil
		}
		parent := filepath.Dir(p)
		if fi.IsDir() {
			get(p)
			e := get(parent)
			e.SubDirs = append(e.SubDirs, filepath.Base(p))
		} else {
			e := get(parent)
			e.FileNames = append(e.FileNames, filepath.Base(p))
		}
		return nil
	})
	if walkErr != nil {
		return nil, distcp.RpcErrorf("walk %s: %v", root, walkErr)
	}

	out := make([]distcp.WalkEntry, 0, len(byDir))
	for _, e := range byDir {
		sort.Strings(e.SubDirs)
		sort.Strings(e.FileNames)
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Dir < out[j].Dir })
	return out, nil
}

func (c *Client) Checksum(ctx context.Context, p distcp.Path) (distcp.ContentHash, error) {
	return checksum(ctx, c, p, c.opts.ChecksumAlgorithm)
}

func (c *Client) Content(_ context.Context, p distcp.Path) (distcp.ContentSummary, error) {
	summary, err := c.hc.GetContentSummary(string(p))
	if err != nil {
		return distcp.ContentSummary{}, distcp.RpcErrorf("content summary %s: %v", p, err)
	}
	return distcp.ContentSummary{Length: summary.Size(), FileCount: summary.FileCount()}, nil
}

type hdfsChunkProducer struct {
	r         io.ReadCloser
	chunkSize int
}

func (p *hdfsChunkProducer) Next(context.Context) (distcp.Chunk, error) {
	buf := make([]byte, p.chunkSize)
	n, err := io.ReadFull(p.r, buf)
	if n > 0 {
		if err == io.ErrUnexpectedEOF {
			err = nil
		}
		return buf[:n], err
	}
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return nil, err
}

func (p *hdfsChunkProducer) Close() error { return p.r.Close() }

func (c *Client) Read(_ context.Context, p distcp.Path, chunkSize int) (distcp.ChunkProducer, error) {
	r, err := c.hc.Open(string(p))
	if err != nil {
		return nil, distcp.RpcErrorf("open %s: %v", p, err)
	}
	return &hdfsChunkProducer{r: r, chunkSize: chunkSize}, nil
}

func (c *Client) Write(ctx context.Context, p distcp.Path, producer distcp.ChunkProducer, opts distcp.WriteOptions) error {
	w, err := c.hc.CreateFile(string(p), uint(replicationOrDefault(opts.Replication)), uint64(blockSizeOrDefault(opts.BlockSize)), 0644)
	if err != nil {
		return distcp.RpcErrorf("create %s: %v", p, err)
	}
	for {
		chunk, err := producer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			_ = w.Close()
			return distcp.RpcErrorf("read chunk for %s: %v", p, err)
		}
		if _, err := w.Write(chunk); err != nil {
			_ = w.Close()
			return distcp.RpcErrorf("write %s: %v", p, err)
		}
	}
	if err := w.Close(); err != nil {
		return distcp.RpcErrorf("close %s: %v", p, err)
	}
	return nil
}

func replicationOrDefault(n int) int {
	if n <= 0 {
		return 3
	}
	return n
}

func blockSizeOrDefault(n int64) int64 {
	if n <= 0 {
		return 128 << 20
	}
	return n
}

func (c *Client) Makedirs(_ context.Context, p distcp.Path) error {
	if err := c.hc.Mkdir(string(p), 0755); err != nil && !os.IsExist(err) {
		return distcp.RpcErrorf("mkdir %s: %v", p, err)
	}
	return nil
}

func (c *Client) Delete(_ context.Context, p distcp.Path) error {
	if err := c.hc.Remove(string(p)); err != nil {
		return distcp.RpcErrorf("delete %s: %v", p, err)
	}
	return nil
}

func (c *Client) Rename(_ context.Context, from, to distcp.Path) error {
	if err := c.hc.Rename(string(from), string(to)); err != nil {
		return distcp.RpcErrorf("rename %s to %s: %v", from, to, err)
	}
	return nil
}

func (c *Client) SetOwner(_ context.Context, p distcp.Path, owner, group string) error {
	if err := c.hc.Chown(string(p), owner, group); err != nil {
		return distcp.RpcErrorf("chown %s: %v", p, err)
	}
	return nil
}

func (c *Client) SetPermission(_ context.Context, p distcp.Path, permission string) error {
	mode, err := strconv.ParseUint(permission, 8, 32)
	if err != nil {
		return distcp.RpcErrorf("invalid permission %s for %s: %v", permission, p, err)
	}
	if err := c.hc.Chmod(string(p), os.FileMode(mode)); err != nil {
		return distcp.RpcErrorf("chmod %s: %v", p, err)
	}
	return nil
}

func (c *Client) SetTimes(_ context.Context, p distcp.Path, access, modification time.Time) error {
	if err := c.hc.Chtimes(string(p), access, modification); err != nil {
		return distcp.RpcErrorf("chtimes %s: %v", p, err)
	}
	return nil
}

func (c *Client) SetReplication(_ context.Context, p distcp.Path, replication int) error {
	if err := c.hc.SetReplication(string(p), uint(replication)); err != nil {
		return distcp.RpcErrorf("set replication %s: %v", p, err)
	}
	return nil
}

var _ distcp.RemoteFS = (*Client)(nil)
