package distcp

import "context"

// plan expands srcPattern and resolves the destination mapping for each
// match, per §4.B. It returns an ordered list of RootMapping, or an
// *Error of kind NoSourceMatch, MissingDestinationParent, Collision, or
// DestinationExists.
func plan(ctx context.Context, src, dst RemoteFS, srcPattern, dstPath Path, overwrite bool) ([]RootMapping, error) {
	srcPattern, err := src.ResolvePath(ctx, srcPattern)
	if err != nil {
		return nil, wrapError(ErrorKindRPC, err, "resolve source pattern %s", srcPattern)
	}
	dstPath, err = dst.ResolvePath(ctx, dstPath)
	if err != nil {
		return nil, wrapError(ErrorKindRPC, err, "resolve destination path %s", dstPath)
	}

	srcRoots, err := src.Glob(ctx, srcPattern)
	if err != nil {
		return nil, wrapError(ErrorKindRPC, err, "glob %s", srcPattern)
	}
	if len(srcRoots) == 0 {
		return nil, newError(ErrorKindNoSourceMatch, "no source matched %s", srcPattern)
	}

	dstStatus, err := dst.Status(ctx, dstPath, false)
	if err != nil {
		return nil, wrapError(ErrorKindRPC, err, "status %s", dstPath)
	}

	mappings := make([]RootMapping, 0, len(srcRoots))

	switch {
	case dstStatus == nil:
		// Destination does not exist: the source is renamed into it.
		// Only valid for a single matched source.
		if len(srcRoots) > 1 {
			return nil, newError(ErrorKindCollision,
				"destination %s does not exist and %d sources matched %s: ambiguous single-root rename",
				dstPath, len(srcRoots), srcPattern)
		}
		if _, err := dst.Status(ctx, dstPath.Dir(), true); err != nil {
			return nil, newError(ErrorKindMissingDestinationParent,
				"parent of destination %s does not exist", dstPath)
		}
		mappings = append(mappings, RootMapping{SrcRoot: srcRoots[0], DstRoot: dstPath})

	case dstStatus.Type == FILE:
		if !overwrite {
			return nil, newError(ErrorKindDestinationExists, "destination %s already exists", dstPath)
		}
		// Every match targets the one file; more than one match is
		// reported by detectCollisions below.
		for _, srcRoot := range srcRoots {
			mappings = append(mappings, RootMapping{SrcRoot: srcRoot, DstRoot: dstPath})
		}

	default: // DIRECTORY
		for _, srcRoot := range srcRoots {
			dstRoot := dstPath.Join(srcRoot.Base())
			childStatus, err := dst.Status(ctx, dstRoot, false)
			if err != nil {
				return nil, wrapError(ErrorKindRPC, err, "status %s", dstRoot)
			}
			if childStatus != nil && !overwrite {
				return nil, newError(ErrorKindDestinationExists, "destination %s already exists", dstRoot)
			}
			mappings = append(mappings, RootMapping{SrcRoot: srcRoot, DstRoot: dstRoot})
		}
	}

	if err := detectCollisions(mappings); err != nil {
		return nil, err
	}
	return mappings, nil
}

// detectCollisions fails with ErrorKindCollision if any two RootMappings
// share the same DstRoot, naming both sources. This guards glob
// patterns that collapse to duplicate destination names (§4.B step 5).
func detectCollisions(mappings []RootMapping) error {
	byDst := make(map[Path]Path, len(mappings))
	for _, m := range mappings {
		if prior, ok := byDst[m.DstRoot]; ok {
			return newError(ErrorKindCollision,
				"%s and %s both resolve to destination %s", prior, m.SrcRoot, m.DstRoot)
		}
		byDst[m.DstRoot] = m.SrcRoot
	}
	return nil
}
