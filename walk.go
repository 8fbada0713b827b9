package distcp

import (
	"context"
	"path/filepath"
)

// expand turns each RootMapping into leaf FileTuples, per §4.C. A root
// whose Walk yields no entries is treated as a single file. Exclude
// patterns (glob, matched against the source path) drop a root or file
// from the plan entirely before it is ever counted as Expected.
func expand(ctx context.Context, src RemoteFS, mappings []RootMapping, exclude []string) ([]FileTuple, error) {
	var tuples []FileTuple
	for _, m := range mappings {
		entries, err := src.Walk(ctx, m.SrcRoot)
		if err != nil {
			return nil, wrapError(ErrorKindRPC, err, "walk %s", m.SrcRoot)
		}
		if len(entries) == 0 {
			if excluded(exclude, m.SrcRoot) {
				continue
			}
			tuples = append(tuples, FileTuple{SrcFile: m.SrcRoot, DstFile: m.DstRoot, root: m})
			continue
		}
		for _, entry := range entries {
			for _, name := range entry.FileNames {
				srcFile := entry.Dir.Join(name)
				if excluded(exclude, srcFile) {
					continue
				}
				rel := srcFile.Relative(m.SrcRoot)
				tuples = append(tuples, FileTuple{
					SrcFile: srcFile,
					DstFile: m.DstRoot.Join(rel),
					root:    m,
				})
			}
		}
	}
	return tuples, nil
}

// excluded reports whether p matches any of the exclude glob patterns.
func excluded(patterns []string, p Path) bool {
	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, string(p)); ok {
			return true
		}
	}
	return false
}
