package distcp

import (
	"context"
	"time"
)

// aggregate folds TransferResults into a Summary, per §4.G. Expected's
// byte total uses a final, authoritative status(src, strict=true) per
// tuple rather than any size observed mid-transfer.
func aggregate(ctx context.Context, srcFS RemoteFS, srcPath, dstPath Path, results []TransferResult, start time.Time) Summary {
	summary := Summary{
		SrcPath:   srcPath,
		DstPath:   dstPath,
		StartTime: start,
		Results:   results,
	}

	for _, r := range results {
		length := r.Bytes
		if status, err := srcFS.Status(ctx, r.Src, true); err == nil {
			length = status.Length
		}
		summary.Expected.Count++
		summary.Expected.Bytes += length

		switch r.Outcome {
		case COPIED:
			summary.Copied.Count++
			summary.Copied.Bytes += r.Bytes
		case SKIPPED:
			summary.Skipped.Count++
			summary.Skipped.Bytes += r.Bytes
		case FAILED:
			summary.Failed.Count++
			summary.Failed.Bytes += r.Bytes
		}
	}

	summary.EndTime = time.Now()
	summary.Duration = summary.EndTime.Sub(summary.StartTime)

	if summary.Failed.Count > 0 {
		summary.Outcome = Failed
	} else {
		summary.Outcome = Successful
	}
	return summary
}
