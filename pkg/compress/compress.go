package compress

import (
	"fmt"
)

// Codec compresses and decompresses chunk payloads. Implementations must
// be deterministic: the same input always yields the same output bytes.
// A codec need not shrink its input; the pipeline stores whichever of the
// raw and compressed forms is smaller.
type Codec interface {
	// Name returns the codec identifier recorded in archive headers.
	Name() string

	// Compress returns the compressed form of data.
	Compress(data []byte) ([]byte, error)

	// Decompress reverses Compress.
	Decompress(data []byte) ([]byte, error)
}

// DefaultLevel is used when a caller passes level 0.
const DefaultLevel = 6

// New creates a codec by name ("zstd", "lzma" or "none"). Level 0 selects
// the default; otherwise the level must be within 1-19.
func New(name string, level int) (Codec, error) {
	if level == 0 {
		level = DefaultLevel
	}
	if level < 1 || level > 19 {
		return nil, fmt.Errorf("compression level %d out of range (1-19)", level)
	}

	switch name {
	case "zstd":
		return newZstdCodec(level)
	case "lzma":
		return newLZMACodec(level)
	case "none":
		return noneCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported compression type: %s (must be 'zstd', 'lzma' or 'none')", name)
	}
}

// noneCodec stores chunks uncompressed.
type noneCodec struct{}

func (noneCodec) Name() string {
	return "none"
}

func (noneCodec) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (noneCodec) Decompress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
