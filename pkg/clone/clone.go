// Package clone reconstructs a source file from an archive, reusing
// chunks found in local seed files wherever possible and fetching only
// the rest from the archive body or its chunk store.
package clone

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/saworbit/chunkkeeper/pkg/archive"
	"github.com/saworbit/chunkkeeper/pkg/chunker"
	"github.com/saworbit/chunkkeeper/pkg/store"
)

// Options controls a clone run.
type Options struct {
	// Seeds lists local files to scan for reusable chunks. Each seed is
	// chunked with the archive's own parameters so matching content
	// produces matching hashes.
	Seeds []string

	// Store serves chunks for store-backed archives.
	Store *store.Store
}

// Stats reports where the reconstructed bytes came from.
type Stats struct {
	SeedBytes         uint64
	ArchiveBytes      uint64
	ChunksFromSeeds   int
	ChunksFromArchive int
}

// Clone writes the archive's source into out. The output file is written
// sparsely by chunk position, so out must be a real file opened for
// writing. The reconstructed content is verified against the archive's
// source checksum before Clone returns.
func Clone(r *archive.Reader, out *os.File, opts Options) (Stats, error) {
	var stats Stats
	dict := r.Dictionary()

	// Positions in the output, per unique chunk.
	positions := make(map[uint32][]uint64)
	offsets := dict.SourceOffsets()
	for i, idx := range dict.RebuildOrder {
		positions[idx] = append(positions[idx], offsets[i])
	}

	byChecksum := make(map[string]uint32, len(dict.Descriptors))
	for i, desc := range dict.Descriptors {
		byChecksum[string(desc.Checksum)] = uint32(i)
	}

	needed := make(map[uint32]bool, len(dict.Descriptors))
	for idx := range positions {
		needed[idx] = true
	}

	for _, seed := range opts.Seeds {
		if len(needed) == 0 {
			break
		}
		if err := scanSeed(seed, dict, byChecksum, positions, needed, out, &stats); err != nil {
			return stats, err
		}
	}

	for idx := range needed {
		data, err := chunkFromArchive(r, opts.Store, int(idx))
		if err != nil {
			return stats, err
		}
		for _, pos := range positions[idx] {
			if _, err := out.WriteAt(data, int64(pos)); err != nil {
				return stats, fmt.Errorf("write chunk %d at %d: %w", idx, pos, err)
			}
		}
		stats.ChunksFromArchive++
		stats.ArchiveBytes += uint64(len(data)) * uint64(len(positions[idx]))
	}

	if err := out.Truncate(int64(dict.SourceTotalSize)); err != nil {
		return stats, fmt.Errorf("truncate output: %w", err)
	}
	if err := verifyOutput(out, dict.SourceChecksum); err != nil {
		return stats, err
	}
	return stats, nil
}

// scanSeed chunks one seed file with the archive parameters and writes
// every matching chunk into its output positions.
func scanSeed(path string, dict *archive.Dictionary, byChecksum map[string]uint32, positions map[uint32][]uint64, needed map[uint32]bool, out *os.File, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed %s: %w", path, err)
	}
	defer f.Close()

	params, err := chunker.NewParams(
		dict.Chunker.FilterBits,
		dict.Chunker.MinChunkSize,
		dict.Chunker.MaxChunkSize,
		dict.Chunker.HashWindow,
		dict.Chunker.Seed,
	)
	if err != nil {
		return fmt.Errorf("archive chunker params: %w", err)
	}

	ck := chunker.New(params, f)
	matched := 0
	err = ck.Scan(func(offset uint64, data []byte) error {
		sum := blake2b.Sum512(data)
		idx, ok := byChecksum[string(sum[:dict.Chunker.HashLength])]
		if !ok || !needed[idx] {
			return nil
		}
		for _, pos := range positions[idx] {
			if _, err := out.WriteAt(data, int64(pos)); err != nil {
				return fmt.Errorf("write seed chunk at %d: %w", pos, err)
			}
		}
		delete(needed, idx)
		matched++
		stats.ChunksFromSeeds++
		stats.SeedBytes += uint64(len(data)) * uint64(len(positions[idx]))
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan seed %s: %w", path, err)
	}
	log.Printf("[Clone] Seed %s matched %d chunks", path, matched)
	return nil
}

// chunkFromArchive fetches and expands unique chunk idx from the archive
// body or, for store-backed archives, from the chunk store.
func chunkFromArchive(r *archive.Reader, st *store.Store, idx int) ([]byte, error) {
	desc := r.Dictionary().Descriptors[idx]
	if desc.CID == "" {
		return r.ChunkData(idx)
	}
	if st == nil {
		return nil, fmt.Errorf("chunk %d requires a chunk store (cid %s)", idx, desc.CID)
	}
	stored, err := st.Get(desc.CID)
	if err != nil {
		return nil, err
	}
	return r.ExpandStored(idx, stored)
}

// verifyOutput re-reads the reconstructed file and compares its strong
// hash to the archive's source checksum.
func verifyOutput(out *os.File, checksum []byte) error {
	if len(checksum) == 0 {
		return nil
	}
	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind output: %w", err)
	}
	h, err := blake2b.New512(nil)
	if err != nil {
		return fmt.Errorf("init file hash: %w", err)
	}
	if _, err := io.Copy(h, out); err != nil {
		return fmt.Errorf("hash output: %w", err)
	}
	sum := h.Sum(nil)
	if !bytes.Equal(sum[:len(checksum)], checksum) {
		return fmt.Errorf("reconstructed file checksum mismatch")
	}
	return nil
}
