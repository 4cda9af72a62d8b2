package archive

import (
	"fmt"
	"io"
	"os"
)

// Writer accumulates stored chunk payloads and finalizes them into an
// archive. Payloads are spooled to a temporary file because the header,
// which must precede them, is not complete until the last chunk has been
// seen.
type Writer struct {
	hashLength  int
	spool       *os.File
	offset      uint64
	descriptors []ChunkDescriptor
	finalized   bool
}

// NewWriter creates a writer that truncates strong hashes to hashLength
// bytes when recording descriptors. Truncation happens here, at the
// archive boundary, and nowhere else.
func NewWriter(hashLength int) (*Writer, error) {
	if hashLength < 1 {
		return nil, fmt.Errorf("hash length must be at least 1, got %d", hashLength)
	}
	spool, err := os.CreateTemp("", "chunkkeeper-spool-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &Writer{hashLength: hashLength, spool: spool}, nil
}

// Append records one unique chunk. Chunks must be appended in unique-index
// order; the descriptor index equals the append order.
func (w *Writer) Append(hash []byte, sourceSize int, payload []byte, compressed bool) error {
	if w.finalized {
		return fmt.Errorf("archive writer already finalized")
	}
	if len(hash) < w.hashLength {
		return fmt.Errorf("strong hash is %d bytes, need at least %d", len(hash), w.hashLength)
	}
	if _, err := w.spool.Write(payload); err != nil {
		return fmt.Errorf("spool chunk: %w", err)
	}

	checksum := make([]byte, w.hashLength)
	copy(checksum, hash[:w.hashLength])
	w.descriptors = append(w.descriptors, ChunkDescriptor{
		Checksum:      checksum,
		SourceSize:    uint32(sourceSize),
		ArchiveOffset: w.offset,
		ArchiveSize:   uint32(len(payload)),
		Compressed:    compressed,
	})
	w.offset += uint64(len(payload))
	return nil
}

// AppendStored records a chunk that lives in an external chunk store
// rather than the archive body.
func (w *Writer) AppendStored(hash []byte, sourceSize, storedSize int, compressed bool, cid string) error {
	if w.finalized {
		return fmt.Errorf("archive writer already finalized")
	}
	if len(hash) < w.hashLength {
		return fmt.Errorf("strong hash is %d bytes, need at least %d", len(hash), w.hashLength)
	}
	checksum := make([]byte, w.hashLength)
	copy(checksum, hash[:w.hashLength])
	w.descriptors = append(w.descriptors, ChunkDescriptor{
		Checksum:    checksum,
		SourceSize:  uint32(sourceSize),
		ArchiveSize: uint32(storedSize),
		Compressed:  compressed,
		CID:         cid,
	})
	return nil
}

// Descriptors exposes the descriptors recorded so far.
func (w *Writer) Descriptors() []ChunkDescriptor {
	return w.descriptors
}

// StoredBytes returns the size of the spooled data region so far.
func (w *Writer) StoredBytes() uint64 {
	return w.offset
}

// Finalize completes dict with the recorded descriptors, writes the
// header to out and streams the spooled payloads after it.
func (w *Writer) Finalize(out io.Writer, dict *Dictionary) error {
	if w.finalized {
		return fmt.Errorf("archive writer already finalized")
	}
	w.finalized = true

	dict.Descriptors = w.descriptors
	dict.Chunker.HashLength = w.hashLength

	header, err := MarshalHeader(dict)
	if err != nil {
		return err
	}
	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write archive header: %w", err)
	}

	if _, err := w.spool.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind spool: %w", err)
	}
	if _, err := io.Copy(out, w.spool); err != nil {
		return fmt.Errorf("copy chunk data: %w", err)
	}
	return nil
}

// Close removes the spool file. It is safe to call after Finalize or on
// an abandoned writer.
func (w *Writer) Close() error {
	name := w.spool.Name()
	if err := w.spool.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Remove(name)
}
