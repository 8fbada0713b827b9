package webhdfs

import (
	"context"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/hdfsops/distcp"
	md5simd "github.com/minio/md5-simd"
)

// checksum streams p through the chosen hash algorithm. The wrapped RPC
// client does not surface the namenode's native heterogeneous checksum
// type directly, so this computes a client-side content digest instead;
// the core's Equivalence Oracle treats whichever algorithm the adapter
// reports as authoritative (§4.D), so this remains a conforming RemoteFS.
func checksum(ctx context.Context, c *Client, p distcp.Path, algorithm string) (distcp.ContentHash, error) {
	producer, err := c.Read(ctx, p, 1<<20)
	if err != nil {
		return distcp.ContentHash{}, err
	}
	defer producer.Close()

	switch algorithm {
	case "md5":
		return md5Checksum(ctx, producer)
	default:
		return xxh64Checksum(ctx, producer)
	}
}

func xxh64Checksum(ctx context.Context, producer distcp.ChunkProducer) (distcp.ContentHash, error) {
	h := xxhash.New()
	if err := drain(ctx, producer, h); err != nil {
		return distcp.ContentHash{}, err
	}
	sum := h.Sum(nil)
	return distcp.ContentHash{Algorithm: "xxh64", Bytes: sum}, nil
}

func md5Checksum(ctx context.Context, producer distcp.ChunkProducer) (distcp.ContentHash, error) {
	server := md5simd.NewServer()
	defer server.Close()
	h := server.NewHash()
	defer h.Close()
	if err := drain(ctx, producer, h); err != nil {
		return distcp.ContentHash{}, err
	}
	sum := h.Sum(nil)
	return distcp.ContentHash{Algorithm: "md5", Bytes: sum}, nil
}

func drain(ctx context.Context, producer distcp.ChunkProducer, w io.Writer) error {
	for {
		chunk, err := producer.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
}
