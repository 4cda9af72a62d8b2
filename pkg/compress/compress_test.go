package compress

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestFactory(t *testing.T) {
	tests := []struct {
		name      string
		codecName string
		level     int
		wantErr   bool
	}{
		{"zstd default level", "zstd", 0, false},
		{"zstd explicit level", "zstd", 19, false},
		{"lzma", "lzma", 6, false},
		{"none", "none", 1, false},
		{"unknown codec", "brotli", 6, true},
		{"level too low", "zstd", -1, true},
		{"level too high", "zstd", 20, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := New(tt.codecName, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected factory error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%q, %d): %v", tt.codecName, tt.level, err)
			}
			if codec.Name() != tt.codecName {
				t.Fatalf("Name() = %q, want %q", codec.Name(), tt.codecName)
			}
		})
	}
}

func TestRoundtrip(t *testing.T) {
	random := make([]byte, 64*1024)
	rand.New(rand.NewSource(1)).Read(random)

	inputs := map[string][]byte{
		"empty":      {},
		"short":      []byte("hello chunk"),
		"repetitive": bytes.Repeat([]byte("0123456789abcdef"), 4096),
		"random":     random,
	}

	for _, name := range []string{"zstd", "lzma", "none"} {
		codec, err := New(name, 6)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		for label, input := range inputs {
			t.Run(name+"/"+label, func(t *testing.T) {
				compressed, err := codec.Compress(input)
				if err != nil {
					t.Fatalf("compress: %v", err)
				}
				restored, err := codec.Decompress(compressed)
				if err != nil {
					t.Fatalf("decompress: %v", err)
				}
				if !bytes.Equal(restored, input) {
					t.Fatalf("roundtrip mismatch: %d bytes in, %d bytes out", len(input), len(restored))
				}
			})
		}
	}
}

func TestCompressionIsDeterministic(t *testing.T) {
	input := bytes.Repeat([]byte("deterministic payload "), 2048)
	for _, name := range []string{"zstd", "lzma", "none"} {
		codec, err := New(name, 6)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		a, err := codec.Compress(input)
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		b, err := codec.Compress(input)
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("%s: repeated compression produced different bytes", name)
		}
	}
}

func TestRepetitiveInputShrinks(t *testing.T) {
	input := bytes.Repeat([]byte("a"), 128*1024)
	for _, name := range []string{"zstd", "lzma"} {
		codec, err := New(name, 6)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		out, err := codec.Compress(input)
		if err != nil {
			t.Fatalf("compress: %v", err)
		}
		if len(out) >= len(input) {
			t.Fatalf("%s did not shrink %d repetitive bytes (got %d)", name, len(input), len(out))
		}
	}
}

func TestNoneCodecCopies(t *testing.T) {
	codec, err := New("none", 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	input := []byte("do not alias me")
	out, err := codec.Compress(input)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	if !bytes.Equal(out, input) {
		t.Fatal("identity codec changed the bytes")
	}
	out[0] = 'X'
	if input[0] == 'X' {
		t.Fatal("identity codec aliases its input")
	}
}
