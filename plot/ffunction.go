package plot

import (
	"fmt"

	"github.com/provespace/pospace/internal/aesperm"
	"github.com/provespace/pospace/internal/bitio"
)

// F1 evaluates f1, the table-1 function: f1(x) = AES256(counter blocks
// covering x*k..x*k+k) ‖ top e bits of x (§4.2).
type F1 struct {
	k int
	p aesperm.Permuter
}

// NewF1 builds an F1 evaluator keyed from seed.
func NewF1(seed [32]byte, k int) (*F1, error) {
	p, err := aesperm.NewTable1Permuter(seed)
	if err != nil {
		return nil, err
	}
	return &F1{k: k, p: p}, nil
}

// Eval computes f1(x) for a single k-bit input x, returning a (k+e)-bit
// result.
func (f *F1) Eval(x uint64) uint64 {
	return f.evalWithBlocks(x, nil)
}

func (f *F1) evalWithBlocks(x uint64, cache map[uint64][16]byte) uint64 {
	bitIndex := x * uint64(f.k)
	blockIndex := bitIndex / 128
	bitOffset := int(bitIndex % 128)

	block0 := f.block(blockIndex, cache)
	combined := make([]byte, 32)
	copy(combined[:16], block0[:])
	if bitOffset+f.k > 128 {
		block1 := f.block(blockIndex+1, cache)
		copy(combined[16:], block1[:])
	}
	kBits := bitio.SliceIntFromBytes(combined, bitOffset, f.k)

	topE := x >> uint(f.k-ExtraBits)
	return (kBits << ExtraBits) | (topE & ((1 << ExtraBits) - 1))
}

func (f *F1) block(index uint64, cache map[uint64][16]byte) [16]byte {
	if cache != nil {
		if b, ok := cache[index]; ok {
			return b
		}
	}
	b := aesperm.EncryptCounterBlock(f.p, index)
	if cache != nil {
		cache[index] = b
	}
	return b
}

// EvalBatch computes f1 for count consecutive x values starting at xStart,
// amortizing AES calls by caching each distinct counter block encrypted
// along the way (§4.2 "batch variant").
func (f *F1) EvalBatch(xStart uint64, count int) []uint64 {
	out := make([]uint64, count)
	cache := make(map[uint64][16]byte, count/2+2)
	for i := 0; i < count; i++ {
		out[i] = f.evalWithBlocks(xStart+uint64(i), cache)
	}
	return out
}

// Fx evaluates fₜ for t in [2,7]: a keyed AES-128 mixing permutation over
// the two parents' y-values and metadata (§4.2).
type Fx struct {
	k, t int
	p    aesperm.Permuter
}

// NewFx builds an Fx evaluator for table t (the table whose *output* this
// produces; t in [2,7]) keyed from seed.
func NewFx(seed [32]byte, k, t int) (*Fx, error) {
	if t < 2 || t > 7 {
		return nil, fmt.Errorf("plot: NewFx: table %d out of range [2,7]", t)
	}
	p, err := aesperm.NewTableMixPermuter(seed, byte(t))
	if err != nil {
		return nil, err
	}
	return &Fx{k: k, t: t, p: p}, nil
}

// Eval computes (y', meta') = fₜ(yL, yR, metaL, metaR). meta' is the
// composed metadata for the *next* table per §4.2's per-table rule; for
// t=7 it is empty.
func (fx *Fx) Eval(yL, yR uint64, metaL, metaR bitio.Bits) (uint64, bitio.Bits, error) {
	length := fx.k * MetadataMultiplier(fx.t)
	if metaL.GetSize() != length || metaR.GetSize() != length {
		return 0, bitio.Bits{}, fmt.Errorf("plot: Fx table %d expects %d-bit metadata, got %d/%d", fx.t, length, metaL.GetSize(), metaR.GetSize())
	}

	chunks, err := fxBlocks(metaL, metaR)
	if err != nil {
		return 0, bitio.Bits{}, err
	}
	out := aesperm.CBCChain(fx.p, chunks)

	keBits := fx.k + ExtraBits
	raw := bitio.SliceIntFromBytes(out[:], 0, keBits)
	y := raw ^ yL

	meta, err := composeMetadata(fx.t, metaL, metaR)
	if err != nil {
		return 0, bitio.Bits{}, err
	}
	return y, meta, nil
}

// fxBlocks splits metaL and metaR into the 128-bit-aligned operand blocks
// CalculateF feeds its permutation chain, per §4.2's four size cases
// (calculate_bucket.hpp's CalculateF/aes128_2b/3b/4b): each operand over
// 128 bits is split at the 128-bit boundary into an (a, b) pair and every
// block is zero-padded on its own, rather than chopping metaL‖metaR as one
// bitstream (which misaligns every case except the first).
func fxBlocks(metaL, metaR bitio.Bits) ([][16]byte, error) {
	length := metaL.GetSize()
	if metaR.GetSize() != length {
		return nil, fmt.Errorf("plot: Fx block split: mismatched operand sizes %d/%d", length, metaR.GetSize())
	}

	switch {
	case length*2 <= 128:
		combined, err := bitio.Concat(metaL, metaR)
		if err != nil {
			return nil, err
		}
		return [][16]byte{toBlock(combined)}, nil

	case length*2 <= 256:
		return [][16]byte{toBlock(metaL), toBlock(metaR)}, nil

	case length*2 <= 384:
		la, lb, err := splitAt128(metaL)
		if err != nil {
			return nil, err
		}
		ra, rb, err := splitAt128(metaR)
		if err != nil {
			return nil, err
		}
		lbrb, err := bitio.Concat(lb, rb)
		if err != nil {
			return nil, err
		}
		return [][16]byte{toBlock(la), toBlock(ra), toBlock(lbrb)}, nil

	case length*2 <= 512:
		la, lb, err := splitAt128(metaL)
		if err != nil {
			return nil, err
		}
		ra, rb, err := splitAt128(metaR)
		if err != nil {
			return nil, err
		}
		return [][16]byte{toBlock(la), toBlock(lb), toBlock(ra), toBlock(rb)}, nil

	default:
		return nil, fmt.Errorf("plot: Fx block split: %d-bit metadata operand exceeds the 4-block case", length)
	}
}

// splitAt128 divides b into its first 128 bits and the remaining tail.
func splitAt128(b bitio.Bits) (head, tail bitio.Bits, err error) {
	head, err = b.Slice(0, 128)
	if err != nil {
		return bitio.Bits{}, bitio.Bits{}, err
	}
	tail, err = b.Slice(128, b.GetSize())
	if err != nil {
		return bitio.Bits{}, bitio.Bits{}, err
	}
	return head, tail, nil
}

// toBlock zero-pads b's bytes into a single 16-byte block.
func toBlock(b bitio.Bits) [16]byte {
	var block [16]byte
	copy(block[:], b.ToBytes())
	return block
}

// composeMetadata implements §4.2's per-table metadata composition rule
// for the *next* table's metadata.
func composeMetadata(t int, metaL, metaR bitio.Bits) (bitio.Bits, error) {
	switch t {
	case 2, 3:
		return bitio.Concat(metaL, metaR)
	case 4:
		return bitio.Xor(metaL, metaR)
	case 5:
		x, err := bitio.Xor(metaL, metaR)
		if err != nil {
			return bitio.Bits{}, err
		}
		return x.Slice(0, x.GetSize()*3/4)
	case 6:
		x, err := bitio.Xor(metaL, metaR)
		if err != nil {
			return bitio.Bits{}, err
		}
		return x.Slice(0, x.GetSize()*2/3)
	case 7:
		return bitio.NewBits(), nil
	default:
		return bitio.Bits{}, fmt.Errorf("plot: composeMetadata: table %d out of range", t)
	}
}
