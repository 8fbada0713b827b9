package distcp

import "context"

// shouldSkip implements the Equivalence Oracle, §4.D. It is only called
// when the destination file already exists and overwrite && checksum
// hold; callers never reach it when !overwrite (that is a fatal
// DestinationExists for the tuple) nor when overwrite && !checksum
// (never skip, a forced overwrite was requested).
func shouldSkip(ctx context.Context, srcFS, dstFS RemoteFS, srcPath, dstPath Path) (bool, error) {
	srcHash, err := srcFS.Checksum(ctx, srcPath)
	if err != nil {
		return false, wrapError(ErrorKindRPC, err, "checksum %s", srcPath)
	}
	dstHash, err := dstFS.Checksum(ctx, dstPath)
	if err != nil {
		return false, wrapError(ErrorKindRPC, err, "checksum %s", dstPath)
	}

	if srcHash.Algorithm != dstHash.Algorithm {
		Debugf(srcPath, "source and destination do not seem to have the same block size or crc chunk size (%s vs %s), copying", srcHash.Algorithm, dstHash.Algorithm)
		return false, nil
	}
	if !srcHash.Equal(dstHash) {
		Debugf(srcPath, "source and destination do not seem to have the same checksum value, copying")
		return false, nil
	}
	Debugf(srcPath, "source %s and destination %s seem to be identical, skipping", srcPath, dstPath)
	return true, nil
}
