package config

import (
	"fmt"
	"math/bits"
	"os"
	"runtime"
	"strconv"

	"github.com/dustin/go-humanize"
)

// MaxHashLength is the full width of the blake2b-512 strong hash.
const MaxHashLength = 64

// CompressConfig holds everything a compression run needs.
type CompressConfig struct {
	// Input is the source file path; empty means stdin.
	Input string

	// Output is the archive file path.
	Output string

	// ChunkStore, when set, is the directory of a content-addressed
	// chunk store receiving the payloads instead of the archive body.
	ChunkStore string

	// FilterBits selects the boundary filter width; the expected chunk
	// size between min and max is roughly 2^FilterBits bytes.
	FilterBits uint32

	// MinChunkSize is the smallest chunk the scanner will cut (bytes).
	MinChunkSize int

	// MaxChunkSize is the hard upper bound on chunk size (bytes).
	MaxChunkSize int

	// HashWindow is the rolling-hash window size in bytes.
	HashWindow int

	// HashLength truncates stored strong hashes to this many bytes.
	HashLength int

	// Codec names the chunk compression ("zstd", "lzma" or "none").
	Codec string

	// Level is the compression level (1-19, 0 for default).
	Level int

	// Workers is the compression parallelism; zero means NumCPU.
	Workers int

	// ForceCreate overwrites existing output files.
	ForceCreate bool
}

// UnpackConfig holds everything an unpack run needs.
type UnpackConfig struct {
	// Input is a local archive path or an http(s) URL.
	Input string

	// Output is the file to reconstruct.
	Output string

	// ChunkStore is required for archives whose chunks live in a store.
	ChunkStore string

	// Seeds lists local files scanned for reusable chunks.
	Seeds []string

	// ForceCreate overwrites an existing output file.
	ForceCreate bool
}

// DefaultCompressConfig mirrors the CLI defaults.
func DefaultCompressConfig() *CompressConfig {
	return &CompressConfig{
		FilterBits:   16,         // ~64KiB average chunks
		MinChunkSize: 16 * 1024,  // 16KiB
		MaxChunkSize: 16 << 20,   // 16MiB
		HashWindow:   16,         // 16B rolling window
		HashLength:   MaxHashLength,
		Codec:        "zstd",
		Level:        6,
		Workers:      runtime.NumCPU(),
	}
}

// LoadCompressFromEnv returns the defaults overridden by CHUNKKEEPER_*
// environment variables.
func LoadCompressFromEnv() *CompressConfig {
	cfg := DefaultCompressConfig()

	if v := os.Getenv("CHUNKKEEPER_AVG_CHUNK_SIZE"); v != "" {
		if size, err := humanize.ParseBytes(v); err == nil {
			cfg.FilterBits = FilterBitsFromAvg(uint32(size))
		}
	}
	if v := os.Getenv("CHUNKKEEPER_MIN_CHUNK_SIZE"); v != "" {
		if size, err := humanize.ParseBytes(v); err == nil {
			cfg.MinChunkSize = int(size)
		}
	}
	if v := os.Getenv("CHUNKKEEPER_MAX_CHUNK_SIZE"); v != "" {
		if size, err := humanize.ParseBytes(v); err == nil {
			cfg.MaxChunkSize = int(size)
		}
	}
	if v := os.Getenv("CHUNKKEEPER_HASH_WINDOW"); v != "" {
		if size, err := humanize.ParseBytes(v); err == nil {
			cfg.HashWindow = int(size)
		}
	}
	if v := os.Getenv("CHUNKKEEPER_HASH_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HashLength = n
		}
	}
	if v := os.Getenv("CHUNKKEEPER_COMPRESSION"); v != "" {
		cfg.Codec = v
	}
	if v := os.Getenv("CHUNKKEEPER_COMPRESSION_LEVEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Level = n
		}
	}
	if v := os.Getenv("CHUNKKEEPER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("CHUNKKEEPER_CHUNK_STORE"); v != "" {
		cfg.ChunkStore = v
	}

	return cfg
}

// Validate checks the configuration against the chunker and archive
// contracts.
func (c *CompressConfig) Validate() error {
	if c.Output == "" {
		return fmt.Errorf("output path must be provided")
	}
	if c.FilterBits < 1 || c.FilterBits > 32 {
		return fmt.Errorf("filter bits must be within 1-32, got %d", c.FilterBits)
	}
	if c.MinChunkSize < 0 {
		return fmt.Errorf("min chunk size must not be negative, got %d", c.MinChunkSize)
	}
	if c.MinChunkSize >= c.MaxChunkSize {
		return fmt.Errorf("min chunk size must be below max chunk size (min=%d max=%d)", c.MinChunkSize, c.MaxChunkSize)
	}
	if avg := uint64(1) << c.FilterBits; uint64(c.MinChunkSize) > avg || avg > uint64(c.MaxChunkSize) {
		return fmt.Errorf("average chunk size %d must lie between min %d and max %d", avg, c.MinChunkSize, c.MaxChunkSize)
	}
	if c.HashWindow < 1 {
		return fmt.Errorf("hash window must be at least 1 byte, got %d", c.HashWindow)
	}
	if c.HashLength < 1 || c.HashLength > MaxHashLength {
		return fmt.Errorf("hash length must be within 1-%d, got %d", MaxHashLength, c.HashLength)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}

// Validate checks the unpack configuration.
func (c *UnpackConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input archive must be provided")
	}
	if c.Output == "" {
		return fmt.Errorf("output path must be provided")
	}
	return nil
}

// FilterBitsFromAvg derives the boundary filter width from a target
// average chunk size: the bit length of avg, less one when avg is an
// exact power of two, so that 2^filterBits tracks the requested average.
func FilterBitsFromAvg(avg uint32) uint32 {
	if avg == 0 {
		return 1
	}
	n := uint32(bits.Len32(avg))
	if avg&(avg-1) == 0 {
		n--
	}
	if n < 1 {
		n = 1
	}
	if n > 32 {
		n = 32
	}
	return n
}
