// Package archive defines the chunk archive container: a self-describing
// header followed by the stored payloads of the unique chunks. The header
// carries everything a cloner needs to re-chunk seed data and match it
// against the archive: the full chunker parameters, the codec, per-chunk
// descriptors and the source-order rebuild vector.
package archive

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

// Magic starts every archive file.
var Magic = [4]byte{'c', 'k', 'a', 'r'}

// FormatVersion is bumped on any incompatible header or table change.
const FormatVersion = 1

// headerChecksumSize is the size of the blake2b digest guarding the
// dictionary bytes.
const headerChecksumSize = blake2b.Size

// fixedHeaderSize covers magic, version and the dictionary length field.
const fixedHeaderSize = 4 + 1 + 8

// ChunkerConfig records the chunking parameters an archive was built
// with. A cloner must reuse them verbatim for seed hashes to line up.
type ChunkerConfig struct {
	FilterBits   uint32 `json:"filter_bits"`
	MinChunkSize int    `json:"min_chunk_size"`
	MaxChunkSize int    `json:"max_chunk_size"`
	HashWindow   int    `json:"hash_window"`
	HashLength   int    `json:"hash_length"`
	Seed         uint32 `json:"seed"`
}

// ChunkDescriptor describes one unique chunk. Checksum holds the strong
// hash truncated to the dictionary's hash length. For archives with an
// inline data region, ArchiveOffset is relative to the start of that
// region; for store-backed archives CID names the chunk in the store, the
// offset is zero and ArchiveSize is the payload's size in the store.
type ChunkDescriptor struct {
	Checksum      []byte `json:"checksum"`
	SourceSize    uint32 `json:"source_size"`
	ArchiveOffset uint64 `json:"archive_offset"`
	ArchiveSize   uint32 `json:"archive_size"`
	Compressed    bool   `json:"compressed"`
	CID           string `json:"cid,omitempty"`
}

// Dictionary is the archive header payload.
type Dictionary struct {
	Application     string            `json:"application"`
	Codec           string            `json:"codec"`
	SourceChecksum  []byte            `json:"source_checksum"`
	SourceTotalSize uint64            `json:"source_total_size"`
	Chunker         ChunkerConfig     `json:"chunker_params"`
	MerkleRoot      []byte            `json:"merkle_root,omitempty"`
	RebuildOrder    []uint32          `json:"rebuild_order"`
	Descriptors     []ChunkDescriptor `json:"chunk_descriptors"`
}

// SourceOffsets returns, for each entry of the rebuild order, the
// absolute offset of that chunk in the reconstructed source.
func (d *Dictionary) SourceOffsets() []uint64 {
	offsets := make([]uint64, len(d.RebuildOrder))
	var pos uint64
	for i, idx := range d.RebuildOrder {
		offsets[i] = pos
		pos += uint64(d.Descriptors[idx].SourceSize)
	}
	return offsets
}

// StoredSize returns the total stored size of all unique chunks: the size
// of the archive data region, plus the store payload sizes of any
// store-backed chunks.
func (d *Dictionary) StoredSize() uint64 {
	var total uint64
	for _, desc := range d.Descriptors {
		total += uint64(desc.ArchiveSize)
	}
	return total
}

// MarshalHeader serializes the dictionary into the on-disk header:
// magic, version, length-prefixed JSON dictionary and a blake2b checksum
// over the dictionary bytes.
func MarshalHeader(dict *Dictionary) ([]byte, error) {
	body, err := json.Marshal(dict)
	if err != nil {
		return nil, fmt.Errorf("marshal dictionary: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(FormatVersion)

	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(body)))
	buf.Write(lenBuf[:])
	buf.Write(body)

	sum := blake2b.Sum512(body)
	buf.Write(sum[:])

	return buf.Bytes(), nil
}

// UnmarshalHeader reads and validates a header from the front of ra,
// returning the dictionary and the total header size in bytes.
func UnmarshalHeader(ra io.ReaderAt) (*Dictionary, int64, error) {
	fixed := make([]byte, fixedHeaderSize)
	if _, err := ra.ReadAt(fixed, 0); err != nil {
		return nil, 0, fmt.Errorf("read archive header: %w", err)
	}
	if !bytes.Equal(fixed[:4], Magic[:]) {
		return nil, 0, fmt.Errorf("not a chunk archive (bad magic %q)", fixed[:4])
	}
	if fixed[4] != FormatVersion {
		return nil, 0, fmt.Errorf("unsupported archive version %d", fixed[4])
	}

	bodyLen := binary.LittleEndian.Uint64(fixed[5:])
	if bodyLen > 1<<30 {
		return nil, 0, fmt.Errorf("implausible header size %d", bodyLen)
	}

	rest := make([]byte, bodyLen+headerChecksumSize)
	if _, err := ra.ReadAt(rest, fixedHeaderSize); err != nil {
		return nil, 0, fmt.Errorf("read archive dictionary: %w", err)
	}
	body := rest[:bodyLen]
	sum := blake2b.Sum512(body)
	if !bytes.Equal(sum[:], rest[bodyLen:]) {
		return nil, 0, fmt.Errorf("archive header checksum mismatch")
	}

	var dict Dictionary
	if err := json.Unmarshal(body, &dict); err != nil {
		return nil, 0, fmt.Errorf("decode dictionary: %w", err)
	}
	if err := validateDictionary(&dict); err != nil {
		return nil, 0, err
	}

	headerSize := int64(fixedHeaderSize) + int64(bodyLen) + headerChecksumSize
	return &dict, headerSize, nil
}

func validateDictionary(dict *Dictionary) error {
	for i, idx := range dict.RebuildOrder {
		if int(idx) >= len(dict.Descriptors) {
			return fmt.Errorf("rebuild order entry %d references chunk %d of %d", i, idx, len(dict.Descriptors))
		}
	}
	if dict.Chunker.HashLength < 1 {
		return fmt.Errorf("dictionary hash length %d invalid", dict.Chunker.HashLength)
	}
	return nil
}
