package chunker

import (
	"fmt"
	"io"
	"time"

	"github.com/saworbit/chunkkeeper/pkg/rollinghash"
)

// BuzHashSeed seeds the rolling-hash table for every archive this tool
// writes or reads. It is part of the archive format: an archive chunked
// with a different seed places boundaries elsewhere and none of its chunk
// hashes will line up.
const BuzHashSeed uint32 = 0x1032_4195

// chunkerBufSize is the refill block size for reads from the source.
const chunkerBufSize = 1024 * 1024

// Params carries the immutable knobs of a chunking run.
//
// A chunk boundary is placed where the low FilterBits bits of the rolling
// digest are all ones, subject to MinSize and MaxSize. The expected chunk
// size between the two bounds is roughly 2^FilterBits bytes.
type Params struct {
	FilterBits uint32
	MinSize    int
	MaxSize    int
	WindowSize int
	Seed       uint32

	mask uint32
}

// NewParams validates and builds chunker parameters.
func NewParams(filterBits uint32, minSize, maxSize, windowSize int, seed uint32) (Params, error) {
	if filterBits > 32 {
		return Params{}, fmt.Errorf("filter bits must be at most 32, got %d", filterBits)
	}
	if minSize < 0 {
		return Params{}, fmt.Errorf("min chunk size must not be negative, got %d", minSize)
	}
	if maxSize <= minSize {
		return Params{}, fmt.Errorf("max chunk size must exceed min chunk size (min=%d max=%d)", minSize, maxSize)
	}
	if windowSize < 1 {
		return Params{}, fmt.Errorf("hash window size must be at least 1, got %d", windowSize)
	}
	return Params{
		FilterBits: filterBits,
		MinSize:    minSize,
		MaxSize:    maxSize,
		WindowSize: windowSize,
		Seed:       seed,
		mask:       filterMask(filterBits),
	}, nil
}

func filterMask(filterBits uint32) uint32 {
	if filterBits == 0 {
		return 0
	}
	return ^uint32(0) >> (32 - filterBits)
}

// Mask returns the boundary filter mask derived from FilterBits.
func (p Params) Mask() uint32 {
	return p.mask
}

// Chunker splits a byte stream into content-defined chunks. It owns its
// source for the duration of a single Scan and is not reusable.
type Chunker struct {
	hash    *rollinghash.BuzHash
	mask    uint32
	minSize int
	maxSize int

	buf    []byte
	source io.Reader

	scanTime time.Duration
	readTime time.Duration
}

// New builds a chunker over source using the given parameters.
func New(params Params, source io.Reader) *Chunker {
	mask := params.mask
	if mask == 0 && params.FilterBits > 0 {
		// Params built without NewParams; derive the mask here.
		mask = filterMask(params.FilterBits)
	}
	return &Chunker{
		hash:    rollinghash.New(params.WindowSize, params.Seed),
		mask:    mask,
		minSize: params.MinSize,
		maxSize: params.MaxSize,
		source:  source,
	}
}

// Preload prepends data to the scan buffer. It may be called before Scan
// when the caller has already consumed bytes from the source, for example
// to probe a file type; the preloaded bytes are chunked as if they were
// still at the front of the stream.
func (c *Chunker) Preload(data []byte) {
	c.buf = append(c.buf, data...)
}

// ScanTime returns the cumulative time spent scanning for boundaries.
func (c *Chunker) ScanTime() time.Duration {
	return c.scanTime
}

// ReadTime returns the cumulative time spent reading from the source.
func (c *Chunker) ReadTime() time.Duration {
	return c.readTime
}

// Scan drives the source to end of stream, invoking fn once per chunk with
// the chunk's absolute offset and its bytes. The byte slice is only valid
// for the duration of the call; callers that keep chunk data must copy it.
// Any residual buffer at end of stream is emitted as a final chunk, which
// may be shorter than the minimum chunk size. A non-nil error from fn or
// from the source aborts the scan and is returned verbatim.
func (c *Chunker) Scan(fn func(offset uint64, data []byte) error) error {
	var sourceIndex, chunkStart uint64
	bufIndex := 0

	// Bytes fed to the rolling hash before this point in a chunk cannot
	// influence any admissible cut, so they are skipped entirely.
	inputLimit := 0
	if c.minSize >= c.hash.WindowSize() {
		inputLimit = c.minSize - c.hash.WindowSize()
	}

	for {
		readStart := time.Now()
		n, err := c.fill()
		c.readTime += time.Since(readStart)
		if err != nil {
			return err
		}
		if n == 0 {
			if len(c.buf) > 0 {
				return fn(chunkStart, c.buf)
			}
			return nil
		}

		for !c.hash.Valid() && bufIndex < len(c.buf) {
			if c.hash.Count() == 0 {
				c.hash.Init(c.buf[bufIndex])
			} else {
				c.hash.Input(c.buf[bufIndex])
			}
			bufIndex++
			sourceIndex++
		}

		scanStart := time.Now()
		for bufIndex < len(c.buf) {
			val := c.buf[bufIndex]
			chunkEnd := sourceIndex + 1
			chunkLength := int(chunkEnd - chunkStart)

			if chunkLength >= inputLimit {
				c.hash.Input(val)
			}

			bufIndex++
			sourceIndex++

			if chunkLength >= c.minSize || chunkLength >= c.maxSize {
				gotChunk := chunkLength >= c.maxSize

				if !gotChunk {
					sum := c.hash.Sum()
					gotChunk = sum|c.mask == sum
				}

				if gotChunk {
					c.scanTime += time.Since(scanStart)
					if err := fn(chunkStart, c.buf[:chunkLength]); err != nil {
						return err
					}
					scanStart = time.Now()
					c.buf = c.buf[:copy(c.buf, c.buf[chunkLength:])]
					bufIndex = 0
					chunkStart = chunkEnd
				}
			}
		}
		c.scanTime += time.Since(scanStart)
	}
}

// fill appends up to one refill block from the source to the scan buffer,
// returning the number of bytes added. A zero return means end of stream.
func (c *Chunker) fill() (int, error) {
	base := len(c.buf)
	c.buf = append(c.buf, make([]byte, chunkerBufSize)...)
	read := 0
	for read < chunkerBufSize {
		n, err := c.source.Read(c.buf[base+read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			c.buf = c.buf[:base+read]
			return read, err
		}
	}
	c.buf = c.buf[:base+read]
	return read, nil
}
