package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdCodec wraps a shared zstd encoder/decoder pair. EncodeAll and
// DecodeAll are safe for concurrent use, so one codec serves all pipeline
// workers.
type zstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func newZstdCodec(level int) (*zstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("init zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("init zstd decoder: %w", err)
	}
	return &zstdCodec{enc: enc, dec: dec}, nil
}

func (c *zstdCodec) Name() string {
	return "zstd"
}

func (c *zstdCodec) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, nil), nil
}

func (c *zstdCodec) Decompress(data []byte) ([]byte, error) {
	return c.dec.DecodeAll(data, nil)
}
