package plot

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/provespace/pospace/internal/ans"
	"github.com/provespace/pospace/internal/bitio"
)

// C3BitsPerEntry approximates the average bits a C3 delta record costs,
// for k >= 20 (§4.8); smaller k needs the more conservative fixed bound
// CalculateC3Size falls back to.
const C3BitsPerEntry = 2.4

// LinePointSize returns the byte width of a park's first_line_point
// field for parameter k.
func LinePointSize(k int) int {
	return bitio.ByteAlign(2*k) / 8
}

// StubsSize returns the byte width of a park's packed-stub region.
func StubsSize(k int) int {
	return bitio.ByteAlign((EntriesPerPark - 1) * (k - StubMinusBits)) / 8
}

// MaxDeltasSize returns the byte budget reserved for a park's
// ANS-encoded delta region for table t, sized generously enough that
// real deltas essentially never overflow it (§4.7).
func MaxDeltasSize(k, t int) int {
	return bitio.ByteAlign(int((EntriesPerPark - 1) * deltaBitsBudget(t))) / 8
}

// ParkSize returns a table-t park's total fixed on-disk size for
// parameter k: first_line_point + stubs + (length-prefixed) deltas.
func ParkSize(k, t int) int {
	return LinePointSize(k) + StubsSize(k) + 2 + MaxDeltasSize(k, t)
}

// CalculateC3Size returns the fixed on-disk size of a C3 park, which
// holds one delta per entry between consecutive C1 checkpoints. Small k
// sees proportionally more variance in the f7 distribution, so it keeps
// a fixed byte-per-entry bound instead of the bits-per-entry estimate
// used for k >= 20.
func CalculateC3Size(k int) int {
	if k < 20 {
		return bitio.ByteAlign(8 * CheckpointInterval1) / 8
	}
	return bitio.ByteAlign(int(C3BitsPerEntry*CheckpointInterval1)) / 8
}

// stubMask is the (k - StubMinusBits)-bit mask every stub is reduced
// into after a park's line points are delta-encoded.
func stubMask(k int) *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(k-StubMinusBits)), big.NewInt(1))
}

// EncodePark packs a sequence of ascending line points into one table
// park: a checkpoint first_line_point, a run of fixed-width low-order
// stubs, and an ANS-coded run of high-order deltas (§3, §4.7). coder may
// be reused across many parks. The returned slice is always exactly
// ParkSize(k, t) bytes.
func EncodePark(coder *ans.Coder, k, t int, linePoints []*big.Int) ([]byte, error) {
	if len(linePoints) == 0 || len(linePoints) > EntriesPerPark {
		return nil, fmt.Errorf("plot: park holds %d line points, want 1..%d", len(linePoints), EntriesPerPark)
	}
	stubBits := k - StubMinusBits
	mask := stubMask(k)

	stubs := make([]uint64, 0, len(linePoints)-1)
	deltaSymbols := make([]byte, 0, len(linePoints)-1)
	for i := 1; i < len(linePoints); i++ {
		diff := new(big.Int).Sub(linePoints[i], linePoints[i-1])
		if diff.Sign() < 0 {
			return nil, fmt.Errorf("plot: park line points must be non-decreasing at entry %d", i)
		}
		stub := new(big.Int).And(diff, mask)
		delta := new(big.Int).Rsh(diff, uint(stubBits))
		if !delta.IsUint64() || delta.Uint64() > 255 {
			return nil, fmt.Errorf("plot: delta at entry %d exceeds one byte (k too small or input unsorted)", i)
		}
		stubs = append(stubs, stub.Uint64())
		deltaSymbols = append(deltaSymbols, byte(delta.Uint64()))
	}

	out := make([]byte, 0, ParkSize(k, t))

	flp := make([]byte, LinePointSize(k))
	linePoints[0].FillBytes(flp)
	out = append(out, flp...)

	packedStubs := bitio.NewParkBits()
	for _, s := range stubs {
		if err := packedStubs.Append(stubBits, s); err != nil {
			return nil, fmt.Errorf("plot: packing stub: %w", err)
		}
	}
	stubBytes := packedStubs.ToBytes()
	padded := make([]byte, StubsSize(k))
	copy(padded, stubBytes)
	out = append(out, padded...)

	encoded, err := coder.Encode(deltaSymbols)
	if err != nil {
		return nil, fmt.Errorf("plot: encoding park deltas: %w", err)
	}
	if len(encoded) > MaxDeltasSize(k, t) {
		return nil, fmt.Errorf("plot: encoded deltas (%d bytes) exceed the park's budget (%d bytes)", len(encoded), MaxDeltasSize(k, t))
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(encoded)))
	out = append(out, lenBuf[:]...)
	out = append(out, encoded...)

	if pad := ParkSize(k, t) - len(out); pad > 0 {
		out = append(out, make([]byte, pad)...)
	} else if pad < 0 {
		return nil, fmt.Errorf("plot: encoded park is %d bytes, exceeds fixed size %d", len(out), ParkSize(k, t))
	}
	return out, nil
}

// DecodePark reverses EncodePark, recovering count ascending line
// points from a ParkSize(k, t)-byte record.
func DecodePark(coder *ans.Coder, k, t int, count int, data []byte) ([]*big.Int, error) {
	want := ParkSize(k, t)
	if len(data) != want {
		return nil, fmt.Errorf("%w: park is %d bytes, want %d", ErrCorruptPlot, len(data), want)
	}
	if count < 1 || count > EntriesPerPark {
		return nil, fmt.Errorf("plot: park entry count %d out of range", count)
	}
	pos := 0
	flp := new(big.Int).SetBytes(data[pos : pos+LinePointSize(k)])
	pos += LinePointSize(k)

	stubBits := k - StubMinusBits
	stubsRegion := data[pos : pos+StubsSize(k)]
	pos += StubsSize(k)

	deltaLen := int(binary.BigEndian.Uint16(data[pos : pos+2]))
	pos += 2
	if pos+deltaLen > len(data) {
		return nil, fmt.Errorf("%w: park delta length %d overruns the record", ErrCorruptPlot, deltaLen)
	}
	deltas, err := coder.Decode(data[pos:pos+deltaLen], count-1)
	if err != nil {
		return nil, fmt.Errorf("plot: decoding park deltas: %w", err)
	}

	points := make([]*big.Int, count)
	points[0] = flp
	for i := 1; i < count; i++ {
		stub := bitio.SliceIntFromBytes(stubsRegion, (i-1)*stubBits, stubBits)
		diff := new(big.Int).Lsh(new(big.Int).SetUint64(uint64(deltas[i-1])), uint(stubBits))
		diff.Or(diff, new(big.Int).SetUint64(stub))
		points[i] = new(big.Int).Add(points[i-1], diff)
	}
	return points, nil
}
