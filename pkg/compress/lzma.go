package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ulikunitz/xz/lzma"
)

// lzmaCodec compresses chunks in the classic LZMA format. The level only
// scales the dictionary capacity; all other writer parameters stay at
// their defaults so output is stable across runs.
type lzmaCodec struct {
	cfg lzma.WriterConfig
}

func newLZMACodec(level int) (*lzmaCodec, error) {
	cfg := lzma.WriterConfig{DictCap: dictCapForLevel(level)}
	if err := cfg.Verify(); err != nil {
		return nil, fmt.Errorf("lzma writer config: %w", err)
	}
	return &lzmaCodec{cfg: cfg}, nil
}

// dictCapForLevel maps the 1-19 level scale onto dictionary capacities
// between 64 KiB (level 1) and 32 MiB (level 19).
func dictCapForLevel(level int) int {
	shift := 16 + (level-1)/2
	if shift > 26 {
		shift = 26
	}
	return 1 << shift
}

func (c *lzmaCodec) Name() string {
	return "lzma"
}

func (c *lzmaCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := c.cfg.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("init lzma writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("lzma compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("lzma flush: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *lzmaCodec) Decompress(data []byte) ([]byte, error) {
	r, err := lzma.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("init lzma reader: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("lzma decompress: %w", err)
	}
	return out, nil
}
