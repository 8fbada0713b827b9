// Package memfs is an in-process distcp.RemoteFS fixture backed by a
// plain map. It lets the planner, walker, oracle, engine, and harness
// be exercised fully without a live cluster.
package memfs

import (
	"context"
	"crypto/sha256"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hdfsops/distcp"
)

type node struct {
	isDir            bool
	data             []byte
	owner            string
	group            string
	permission       string
	accessTime       time.Time
	modificationTime time.Time
	replication      int
	blockSize        int64
}

// FS is an in-memory RemoteFS. The zero value is not usable; use New.
type FS struct {
	mu    sync.Mutex
	nodes map[distcp.Path]*node
}

// New returns an empty in-memory filesystem with a root directory.
func New() *FS {
	fs := &FS{nodes: make(map[distcp.Path]*node)}
	fs.nodes["/"] = &node{isDir: true, permission: "0755", modificationTime: time.Now()}
	return fs
}

// Mkdir creates dirPath and any missing ancestors, for test setup.
func (fs *FS) Mkdir(dirPath distcp.Path) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirAllLocked(dirPath)
}

func (fs *FS) mkdirAllLocked(p distcp.Path) {
	segs := p.Segments()
	cur := distcp.Path("/")
	for _, seg := range segs {
		cur = cur.Join(seg)
		if _, ok := fs.nodes[cur]; !ok {
			fs.nodes[cur] = &node{isDir: true, permission: "0755", modificationTime: time.Now()}
		}
	}
}

// WriteFile creates or replaces a file with content, for test setup.
func (fs *FS) WriteFile(p distcp.Path, content []byte) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirAllLocked(p.Dir())
	fs.nodes[p] = &node{
		data: append([]byte(nil), content...), permission: "0644",
		owner: "hdfs", group: "supergroup",
		replication: 3, blockSize: 128 << 20,
		modificationTime: time.Now(), accessTime: time.Now(),
	}
}

// ReadFile returns the current bytes stored at p, for test assertions.
func (fs *FS) ReadFile(p distcp.Path) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok || n.isDir {
		return nil, false
	}
	return append([]byte(nil), n.data...), true
}

// Exists reports whether p has any entry, for test assertions.
func (fs *FS) Exists(p distcp.Path) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, ok := fs.nodes[p]
	return ok
}

func (fs *FS) ResolvePath(_ context.Context, p distcp.Path) (distcp.Path, error) {
	return distcp.NormalizePath(string(p)), nil
}

func (fs *FS) Status(_ context.Context, p distcp.Path, strict bool) (*distcp.FileStatus, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		if strict {
			return nil, distcp.RpcErrorf("File does not exist: %s", p)
		}
		return nil, nil
	}
	typ := distcp.FILE
	if n.isDir {
		typ = distcp.DIRECTORY
	}
	return &distcp.FileStatus{
		Type: typ, Length: int64(len(n.data)), Owner: n.owner, Group: n.group,
		Permission: n.permission, AccessTime: n.accessTime, ModificationTime: n.modificationTime,
		Replication: n.replication, BlockSize: n.blockSize,
	}, nil
}

func (fs *FS) Glob(_ context.Context, pattern distcp.Path) ([]distcp.Path, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	var out []distcp.Path
	for p := range fs.nodes {
		ok, err := filepath.Match(string(pattern), string(p))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	if !strings.ContainsAny(string(pattern), "*?") {
		if _, ok := fs.nodes[pattern]; ok {
			out = []distcp.Path{pattern}
		} else {
			out = nil
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (fs *FS) Walk(_ context.Context, root distcp.Path) ([]distcp.WalkEntry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[root]
	if !ok || !n.isDir {
		return nil, nil
	}

	byDir := make(map[distcp.Path]*distcp.WalkEntry)
	get := func(dir distcp.Path) *distcp.WalkEntry {
		e, ok := byDir[dir]
		if !ok {
			e = &distcp.WalkEntry{Dir: dir}
			byDir[dir] = e
		}
		return e
	}
	get(root)

	for p, child := range fs.nodes {
		if p == root || !p.Under(root) {
			continue
		}
		parent := p.Dir()
		if child.isDir {
			get(p)
			get(parent).SubDirs = append(get(parent).SubDirs, p.Base())
		} else {
			get(parent).FileNames = append(get(parent).FileNames, p.Base())
		}
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

func (fs *FS) Checksum(_ context.Context, p distcp.Path) (distcp.ContentHash, error) {
	fs.mu.Lock()
	n, ok := fs.nodes[p]
	fs.mu.Unlock()
	if !ok || n.isDir {
		return distcp.ContentHash{}, distcp.RpcErrorf("File does not exist: %s", p)
	}
	sum := sha256.Sum256(n.data)
	return distcp.ContentHash{Algorithm: "sha256", Bytes: sum[:]}, nil
}

func (fs *FS) Content(_ context.Context, p distcp.Path) (distcp.ContentSummary, error) {
	entries, _ := fs.Walk(context.Background(), p)
	var summary distcp.ContentSummary
	for _, e := range entries {
		summary.FileCount += int64(len(e.FileNames))
		for _, name := range e.FileNames {
			if data, ok := fs.ReadFile(e.Dir.Join(name)); ok {
				summary.Length += int64(len(data))
			}
		}
	}
	return summary, nil
}

type memChunkProducer struct {
	data      []byte
	chunkSize int
	offset    int
}

func (p *memChunkProducer) Next(context.Context) (distcp.Chunk, error) {
	if p.offset >= len(p.data) {
		return nil, io.EOF
	}
	end := p.offset + p.chunkSize
	if end > len(p.data) {
		end = len(p.data)
	}
	chunk := p.data[p.offset:end]
	p.offset = end
	return chunk, nil
}

func (p *memChunkProducer) Close() error { return nil }

func (fs *FS) Read(_ context.Context, p distcp.Path, chunkSize int) (distcp.ChunkProducer, error) {
	fs.mu.Lock()
	n, ok := fs.nodes[p]
	fs.mu.Unlock()
	if !ok || n.isDir {
		return nil, distcp.RpcErrorf("File does not exist: %s", p)
	}
	return &memChunkProducer{data: append([]byte(nil), n.data...), chunkSize: chunkSize}, nil
}

func (fs *FS) Write(ctx context.Context, p distcp.Path, producer distcp.ChunkProducer, opts distcp.WriteOptions) error {
	fs.mu.Lock()
	if _, exists := fs.nodes[p]; exists {
		fs.mu.Unlock()
		return distcp.RpcErrorf("file already exists: %s", p)
	}
	fs.mu.Unlock()

	var buf []byte
	for {
		chunk, err := producer.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		buf = append(buf, chunk...)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.nodes[p] = &node{
		data: buf, permission: "0644",
		replication: opts.Replication, blockSize: opts.BlockSize,
		modificationTime: time.Now(), accessTime: time.Now(),
	}
	return nil
}

func (fs *FS) Makedirs(_ context.Context, p distcp.Path) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, ok := fs.nodes[p]; ok {
		return nil
	}
	fs.nodes[p] = &node{isDir: true, permission: "0755", modificationTime: time.Now()}
	return nil
}

func (fs *FS) Delete(_ context.Context, p distcp.Path) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.nodes, p)
	return nil
}

func (fs *FS) Rename(_ context.Context, from, to distcp.Path) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[from]
	if !ok {
		return distcp.RpcErrorf("File does not exist: %s", from)
	}
	delete(fs.nodes, from)
	fs.nodes[to] = n
	return nil
}

func (fs *FS) SetOwner(_ context.Context, p distcp.Path, owner, group string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		return distcp.RpcErrorf("File does not exist: %s", p)
	}
	n.owner, n.group = owner, group
	return nil
}

func (fs *FS) SetPermission(_ context.Context, p distcp.Path, permission string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		return distcp.RpcErrorf("File does not exist: %s", p)
	}
	n.permission = permission
	return nil
}

func (fs *FS) SetTimes(_ context.Context, p distcp.Path, access, modification time.Time) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		return distcp.RpcErrorf("File does not exist: %s", p)
	}
	n.accessTime, n.modificationTime = access, modification
	return nil
}

func (fs *FS) SetReplication(_ context.Context, p distcp.Path, replication int) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		return distcp.RpcErrorf("File does not exist: %s", p)
	}
	n.replication = replication
	return nil
}

var _ distcp.RemoteFS = (*FS)(nil)
