package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/saworbit/chunkkeeper/pkg/compress"
	"golang.org/x/crypto/blake2b"
)

// Reader serves chunks out of a finalized archive through any io.ReaderAt,
// which covers local files and remote archives behind HTTPReaderAt alike.
type Reader struct {
	ra        io.ReaderAt
	dict      *Dictionary
	dataStart int64
	codec     compress.Codec
}

// NewReader parses and validates the header of an archive.
func NewReader(ra io.ReaderAt) (*Reader, error) {
	dict, headerSize, err := UnmarshalHeader(ra)
	if err != nil {
		return nil, err
	}
	codec, err := compress.New(dict.Codec, 0)
	if err != nil {
		return nil, fmt.Errorf("archive codec: %w", err)
	}
	return &Reader{ra: ra, dict: dict, dataStart: headerSize, codec: codec}, nil
}

// Dictionary returns the parsed archive header.
func (r *Reader) Dictionary() *Dictionary {
	return r.dict
}

// HeaderSize returns the byte offset where the data region begins.
func (r *Reader) HeaderSize() int64 {
	return r.dataStart
}

// ChunkStored returns the stored payload of unique chunk i without
// decompressing it.
func (r *Reader) ChunkStored(i int) ([]byte, error) {
	if i < 0 || i >= len(r.dict.Descriptors) {
		return nil, fmt.Errorf("chunk index %d out of range (%d chunks)", i, len(r.dict.Descriptors))
	}
	desc := r.dict.Descriptors[i]
	if desc.CID != "" {
		return nil, fmt.Errorf("chunk %d lives in an external store (cid %s)", i, desc.CID)
	}
	buf := make([]byte, desc.ArchiveSize)
	if _, err := r.ra.ReadAt(buf, r.dataStart+int64(desc.ArchiveOffset)); err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", i, err)
	}
	return buf, nil
}

// ChunkData returns the source bytes of unique chunk i, decompressing and
// verifying the stored payload against the descriptor checksum.
func (r *Reader) ChunkData(i int) ([]byte, error) {
	stored, err := r.ChunkStored(i)
	if err != nil {
		return nil, err
	}
	return r.ExpandStored(i, stored)
}

// ExpandStored decompresses a stored payload if needed and checks it
// against descriptor i. Callers that fetch store-backed payloads
// themselves use this to apply the same validation as ChunkData.
func (r *Reader) ExpandStored(i int, stored []byte) ([]byte, error) {
	desc := r.dict.Descriptors[i]
	data := stored
	if desc.Compressed {
		var err error
		data, err = r.codec.Decompress(stored)
		if err != nil {
			return nil, fmt.Errorf("decompress chunk %d: %w", i, err)
		}
	}
	if len(data) != int(desc.SourceSize) {
		return nil, fmt.Errorf("chunk %d expands to %d bytes, expected %d", i, len(data), desc.SourceSize)
	}
	sum := blake2b.Sum512(data)
	if !bytes.Equal(sum[:len(desc.Checksum)], desc.Checksum) {
		return nil, fmt.Errorf("chunk %d checksum mismatch", i)
	}
	return data, nil
}

// Reconstruct writes the original source to out by walking the rebuild
// order, then verifies the file-level checksum when the dictionary carries
// one.
func (r *Reader) Reconstruct(out io.Writer) error {
	fileHash, err := blake2b.New512(nil)
	if err != nil {
		return fmt.Errorf("init file hash: %w", err)
	}
	w := io.MultiWriter(out, fileHash)

	// Chunks repeat in the rebuild order; cache the most recent one since
	// duplicates commonly appear in runs.
	lastIdx := -1
	var lastData []byte
	for _, idx := range r.dict.RebuildOrder {
		if int(idx) != lastIdx {
			data, err := r.ChunkData(int(idx))
			if err != nil {
				return err
			}
			lastIdx = int(idx)
			lastData = data
		}
		if _, err := w.Write(lastData); err != nil {
			return fmt.Errorf("write chunk %d: %w", idx, err)
		}
	}

	if len(r.dict.SourceChecksum) > 0 {
		sum := fileHash.Sum(nil)
		if !bytes.Equal(sum[:len(r.dict.SourceChecksum)], r.dict.SourceChecksum) {
			return fmt.Errorf("source checksum mismatch after reconstruction")
		}
	}
	return nil
}
