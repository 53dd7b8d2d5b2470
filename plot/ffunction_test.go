package plot

import (
	"testing"

	"github.com/provespace/pospace/internal/bitio"
)

func testSeed() [32]byte {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i * 7 % 251)
	}
	return seed
}

func TestF1Deterministic(t *testing.T) {
	f1, err := NewF1(testSeed(), 20)
	if err != nil {
		t.Fatal(err)
	}
	a := f1.Eval(12345)
	b := f1.Eval(12345)
	if a != b {
		t.Fatalf("F1 not deterministic: %d != %d", a, b)
	}
	if a>>uint(25) != 0 {
		t.Fatalf("F1 output wider than k+e=25 bits: %d", a)
	}
}

func TestF1DistinctInputsUsuallyDiffer(t *testing.T) {
	f1, err := NewF1(testSeed(), 20)
	if err != nil {
		t.Fatal(err)
	}
	if f1.Eval(1) == f1.Eval(2) {
		t.Fatal("unexpected collision between adjacent inputs (not a hard requirement, but suspicious)")
	}
}

func TestF1BatchMatchesEval(t *testing.T) {
	f1, err := NewF1(testSeed(), 18)
	if err != nil {
		t.Fatal(err)
	}
	batch := f1.EvalBatch(100, 16)
	for i, got := range batch {
		want := f1.Eval(uint64(100 + i))
		if got != want {
			t.Errorf("batch[%d] = %d, want %d", i, got, want)
		}
	}
}

func TestFxDeterministicAndWidth(t *testing.T) {
	k := 20
	fx, err := NewFx(testSeed(), k, 2)
	if err != nil {
		t.Fatal(err)
	}
	metaLen := k * MetadataMultiplier(2)
	metaL, _ := bitio.FromUint(0xABCDE&((1<<uint(metaLen))-1), metaLen)
	metaR, _ := bitio.FromUint(0x12345&((1<<uint(metaLen))-1), metaLen)

	y1, meta1, err := fx.Eval(111, 222, metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	y2, meta2, err := fx.Eval(111, 222, metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	if y1 != y2 || meta1.GetSize() != meta2.GetSize() {
		t.Fatal("Fx not deterministic")
	}
	if meta1.GetSize() != metaLen*2 {
		t.Fatalf("table 2 metadata composition should concatenate: got %d bits, want %d", meta1.GetSize(), metaLen*2)
	}
	if y1 >= 1<<uint(k+ExtraBits) {
		t.Fatalf("y output wider than k+e bits: %d", y1)
	}
}

func TestFxTable7MetadataEmpty(t *testing.T) {
	k := 20
	fx, err := NewFx(testSeed(), k, 7)
	if err != nil {
		t.Fatal(err)
	}
	metaLen := k * MetadataMultiplier(7)
	metaL, _ := bitio.FromUint(0, metaLen)
	metaR, _ := bitio.FromUint(0, metaLen)
	_, meta, err := fx.Eval(1, 2, metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	if meta.GetSize() != 0 {
		t.Fatalf("table 7 metadata should be empty, got %d bits", meta.GetSize())
	}
}

// bitsFromPattern builds a Bits value lenBits long by repeating pattern
// byte-by-byte, used below to give metaL/metaR distinguishable content
// so a wrong block split shows up as wrong bytes rather than all-zero
// coincidences.
func bitsFromPattern(pattern byte, lenBits int) bitio.Bits {
	buf := make([]byte, bitio.ByteAlign(lenBits)/8)
	for i := range buf {
		buf[i] = pattern
	}
	b, err := bitio.FromBytes(buf, lenBits, bitio.MaxShortBits)
	if err != nil {
		panic(err)
	}
	return b
}

// block16 zero-pads b's bytes into a 16-byte AES block, independently of
// fxBlocks/toBlock, for comparison against fxBlocks' output.
func block16(b bitio.Bits) [16]byte {
	var out [16]byte
	copy(out[:], b.ToBytes())
	return out
}

func mustSlice(t *testing.T, b bitio.Bits, lo, hi int) bitio.Bits {
	t.Helper()
	s, err := b.Slice(lo, hi)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func mustConcat(t *testing.T, a, b bitio.Bits) bitio.Bits {
	t.Helper()
	c, err := bitio.Concat(a, b)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// TestFxBlocksSingleBlockCase covers CalculateF's length*2<=128 case: one
// block holding metaL and metaR concatenated.
func TestFxBlocksSingleBlockCase(t *testing.T) {
	metaL := bitsFromPattern(0xAA, 50)
	metaR := bitsFromPattern(0x55, 50)

	got, err := fxBlocks(metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	want := []([16]byte){block16(mustConcat(t, metaL, metaR))}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("single-block case: got %x, want %x", got, want)
	}
}

// TestFxBlocksTwoBlockCase covers 128<length*2<=256: metaL and metaR each
// zero-padded into their own block, not chopped from a concatenation.
func TestFxBlocksTwoBlockCase(t *testing.T) {
	metaL := bitsFromPattern(0xAA, 100)
	metaR := bitsFromPattern(0x55, 100)

	got, err := fxBlocks(metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	want := [][16]byte{block16(metaL), block16(metaR)}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("two-block case: got %x, want %x", got, want)
	}
}

// TestFxBlocksThreeBlockCase covers 256<length*2<=384: block1=La,
// block2=Ra, block3=Lb‖Rb (the tails beyond the first 128 bits of each
// operand, concatenated together).
func TestFxBlocksThreeBlockCase(t *testing.T) {
	metaL := bitsFromPattern(0xAA, 150)
	metaR := bitsFromPattern(0x55, 150)

	got, err := fxBlocks(metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	la := mustSlice(t, metaL, 0, 128)
	lb := mustSlice(t, metaL, 128, 150)
	ra := mustSlice(t, metaR, 0, 128)
	rb := mustSlice(t, metaR, 128, 150)
	want := [][16]byte{block16(la), block16(ra), block16(mustConcat(t, lb, rb))}
	if len(got) != len(want) {
		t.Fatalf("three-block case: got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("three-block case: block %d = %x, want %x", i, got[i], want[i])
		}
	}
}

// TestFxBlocksFourBlockCase covers 384<length*2<=512: block1=La,
// block2=Lb, block3=Ra, block4=Rb, each zero-padded independently.
func TestFxBlocksFourBlockCase(t *testing.T) {
	metaL := bitsFromPattern(0xAA, 220)
	metaR := bitsFromPattern(0x55, 220)

	got, err := fxBlocks(metaL, metaR)
	if err != nil {
		t.Fatal(err)
	}
	la := mustSlice(t, metaL, 0, 128)
	lb := mustSlice(t, metaL, 128, 220)
	ra := mustSlice(t, metaR, 0, 128)
	rb := mustSlice(t, metaR, 128, 220)
	want := [][16]byte{block16(la), block16(lb), block16(ra), block16(rb)}
	if len(got) != len(want) {
		t.Fatalf("four-block case: got %d blocks, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("four-block case: block %d = %x, want %x", i, got[i], want[i])
		}
	}
}

// TestFxEvalMultiBlockTables exercises Eval itself (not just fxBlocks) at
// k values where tables 3, 4 and 6 land in the multi-block cases this
// fix addresses, confirming Eval still runs end to end and stays
// deterministic once metadata crosses the 128-bit block boundary.
func TestFxEvalMultiBlockTables(t *testing.T) {
	cases := []struct {
		table, k int
	}{
		{3, 33}, // length=66, 2*length=132: two-block case
		{4, 17}, // length=68, 2*length=136: two-block case
		{4, 33}, // length=132, 2*length=264: three-block case
		{6, 22}, // length=66, 2*length=132: two-block case
	}
	for _, c := range cases {
		fx, err := NewFx(testSeed(), c.k, c.table)
		if err != nil {
			t.Fatalf("table %d k=%d: %v", c.table, c.k, err)
		}
		metaLen := c.k * MetadataMultiplier(c.table)
		metaL := bitsFromPattern(0xAA, metaLen)
		metaR := bitsFromPattern(0x55, metaLen)

		y1, _, err := fx.Eval(111, 222, metaL, metaR)
		if err != nil {
			t.Fatalf("table %d k=%d: %v", c.table, c.k, err)
		}
		y2, _, err := fx.Eval(111, 222, metaL, metaR)
		if err != nil {
			t.Fatalf("table %d k=%d: %v", c.table, c.k, err)
		}
		if y1 != y2 {
			t.Fatalf("table %d k=%d: Eval not deterministic", c.table, c.k)
		}
		if y1 >= 1<<uint(c.k+ExtraBits) {
			t.Fatalf("table %d k=%d: y output wider than k+e bits: %d", c.table, c.k, y1)
		}
	}
}

func TestFxRejectsTableOutOfRange(t *testing.T) {
	if _, err := NewFx(testSeed(), 20, 1); err == nil {
		t.Fatal("expected error for table 1")
	}
	if _, err := NewFx(testSeed(), 20, 8); err == nil {
		t.Fatal("expected error for table 8")
	}
}
