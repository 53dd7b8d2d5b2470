// Package ans wraps the ANS/FSE entropy coder the plotter treats as a
// black-box byte-level coder parametrized by a normalised distribution
// (§1, §4.7, §4.8). The concrete coder is klauspost/compress/fse — the
// exported tANS implementation backing that module's zstd encoder.
package ans

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/fse"
)

const (
	flagRaw        byte = 0
	flagCompressed byte = 1
)

// Coder encodes/decodes a byte stream of "small delta" or checkpoint-delta
// symbols. A Coder is safe for reuse across many parks; it keeps no
// cross-call state: its scratch is left nil, so fse allocates fresh
// buffers on every call.
type Coder struct {
	scratch *fse.Scratch
}

// NewCoder returns a ready-to-use Coder.
func NewCoder() *Coder {
	return &Coder{}
}

// Encode compresses symbols, falling back to a raw (uncompressed) payload
// when fse reports the input doesn't compress — the normal case for a
// short or high-entropy symbol run (e.g. a park's final, partial group).
func (c *Coder) Encode(symbols []byte) ([]byte, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	out, err := fse.Compress(symbols, c.scratch)
	if err != nil {
		if errors.Is(err, fse.ErrIncompressible) || errors.Is(err, fse.ErrUseRLE) {
			raw := make([]byte, 1+len(symbols))
			raw[0] = flagRaw
			copy(raw[1:], symbols)
			return raw, nil
		}
		return nil, fmt.Errorf("ans: encode: %w", err)
	}
	marked := make([]byte, 1+len(out))
	marked[0] = flagCompressed
	copy(marked[1:], out)
	return marked, nil
}

// Decode reconstructs count symbols from data produced by Encode.
func (c *Coder) Decode(data []byte, count int) ([]byte, error) {
	if count == 0 {
		return nil, nil
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("ans: decode: empty payload for %d expected symbols", count)
	}
	flag, body := data[0], data[1:]
	switch flag {
	case flagRaw:
		if len(body) != count {
			return nil, fmt.Errorf("ans: decode: raw payload has %d bytes, expected %d", len(body), count)
		}
		out := make([]byte, count)
		copy(out, body)
		return out, nil
	case flagCompressed:
		out, err := fse.Decompress(body, c.scratch)
		if err != nil {
			return nil, fmt.Errorf("ans: decode: %w", err)
		}
		if len(out) != count {
			return nil, fmt.Errorf("ans: decode: decompressed %d symbols, expected %d", len(out), count)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("ans: decode: unknown payload flag %d", flag)
	}
}
