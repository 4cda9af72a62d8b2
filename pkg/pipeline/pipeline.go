package pipeline

import (
	"context"
	"fmt"
	"hash"
	"runtime"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"github.com/saworbit/chunkkeeper/pkg/chunker"
	"github.com/saworbit/chunkkeeper/pkg/compress"
)

// CompressedChunk is one unique chunk ready for storage: its position and
// size in the source, its full strong hash, and the payload chosen for
// storage. When compression does not shrink a chunk the raw bytes are kept
// and Compressed is false.
type CompressedChunk struct {
	Offset     uint64
	SourceSize int
	Hash       []byte
	Data       []byte
	Compressed bool
}

// Descriptor maps one source-order chunk to the unique chunk it resolves
// to. Concatenating the unique chunks in descriptor order reconstructs the
// source.
type Descriptor struct {
	UniqueIndex uint32
}

// Result summarizes a pipeline run.
type Result struct {
	SourceSize uint64
	FileHash   []byte
	Order      []Descriptor
}

// Hasher computes a strong digest over chunk bytes. It must be
// deterministic and collision resistant; the pipeline treats the digest as
// an opaque byte string.
type Hasher func([]byte) []byte

// Blake2b is the default strong hash.
func Blake2b(data []byte) []byte {
	d := blake2b.Sum512(data)
	return d[:]
}

// Options tunes a pipeline run.
type Options struct {
	// Workers is the compression parallelism. Zero means NumCPU.
	Workers int

	// FileHash requests a strong hash over the whole stream, folded in
	// source order, alongside the per-chunk hashes.
	FileHash bool

	// Hasher overrides the strong hash. Nil means Blake2b.
	Hasher Hasher
}

// item travels through the fan-in: either a freshly compressed unique
// chunk or a duplicate resolving to an earlier unique index.
type item struct {
	dup         bool
	uniqueIndex uint32
	chunk       CompressedChunk
}

// Run drives ck to end of stream. Each chunk is strong-hashed on the
// producing goroutine and, if not seen before, compressed on one of
// Options.Workers worker goroutines. onUnique receives every unique chunk
// exactly once, in first-seen source order, from a single goroutine. The
// returned order vector maps every source chunk to its unique index.
//
// The number of in-flight chunks is bounded at twice the worker count, so
// a slow onUnique consumer throttles the scan instead of growing memory.
// For a fixed source, parameters, hasher and codec the unique set, unique
// indices and order vector are identical for any worker count.
func Run(ctx context.Context, ck *chunker.Chunker, codec compress.Codec, opts Options, onUnique func(CompressedChunk) error) (Result, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = Blake2b
	}

	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(workers)

	fan := NewFanIn[item]()
	tokens := make(chan struct{}, 2*workers)

	var res Result
	var fileHash hash.Hash
	if opts.FileHash {
		h, err := blake2b.New512(nil)
		if err != nil {
			return Result{}, fmt.Errorf("init file hash: %w", err)
		}
		fileHash = h
	}

	// Single consumer: drain the fan-in in sequence order, assign unique
	// indices and hand unique chunks downstream.
	consumerErr := make(chan error, 1)
	go func() {
		var next uint32
		var err error
		for {
			it, ok := fan.Next()
			if !ok {
				break
			}
			if it.dup {
				res.Order = append(res.Order, Descriptor{UniqueIndex: it.uniqueIndex})
			} else {
				res.Order = append(res.Order, Descriptor{UniqueIndex: next})
				next++
				if err == nil {
					if cbErr := onUnique(it.chunk); cbErr != nil {
						err = cbErr
						cancel()
					}
				}
			}
			<-tokens
		}
		consumerErr <- err
	}()

	var seq uint64
	var uniqueCount uint32
	seen := make(map[string]uint32)

	scanErr := ck.Scan(func(offset uint64, data []byte) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		res.SourceSize += uint64(len(data))

		// The chunker reuses its buffer, so the payload must be copied
		// before it crosses a goroutine boundary.
		raw := make([]byte, len(data))
		copy(raw, data)

		digest := hasher(raw)
		if fileHash != nil {
			fileHash.Write(raw)
		}

		n := seq
		seq++

		select {
		case tokens <- struct{}{}:
		case <-gctx.Done():
			return gctx.Err()
		}

		if idx, ok := seen[string(digest)]; ok {
			return fan.Submit(n, item{dup: true, uniqueIndex: idx})
		}
		seen[string(digest)] = uniqueCount
		uniqueCount++

		g.Go(func() error {
			cdata, err := codec.Compress(raw)
			if err != nil {
				return fmt.Errorf("compress chunk at offset %d: %w", offset, err)
			}
			cc := CompressedChunk{
				Offset:     offset,
				SourceSize: len(raw),
				Hash:       digest,
				Data:       cdata,
				Compressed: true,
			}
			if len(cdata) >= len(raw) {
				cc.Data = raw
				cc.Compressed = false
			}
			return fan.Submit(n, item{chunk: cc})
		})
		return nil
	})

	workerErr := g.Wait()
	fan.Close()
	cErr := <-consumerErr

	// A scan abort triggered by a failing worker or consumer reports the
	// root cause, not the cancellation it provoked.
	switch {
	case workerErr != nil:
		return Result{}, workerErr
	case cErr != nil:
		return Result{}, cErr
	case scanErr != nil:
		return Result{}, scanErr
	}

	if uint64(len(res.Order)) != seq {
		return Result{}, fmt.Errorf("pipeline dropped %d of %d chunks", seq-uint64(len(res.Order)), seq)
	}
	if fileHash != nil {
		res.FileHash = fileHash.Sum(nil)
	}
	return res, nil
}
