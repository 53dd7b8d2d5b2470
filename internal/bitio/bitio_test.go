package bitio

import "testing"

// S5: slice_int_from_bytes concrete scenario vectors from the spec.
func TestSliceIntFromBytes(t *testing.T) {
	cases := []struct {
		buf      []byte
		startBit int
		nbits    int
		want     uint64
	}{
		{[]byte{45, 172, 225}, 2, 19, 374172},
		{[]byte{213}, 1, 5, 21},
	}
	for _, c := range cases {
		got := SliceIntFromBytes(c.buf, c.startBit, c.nbits)
		if got != c.want {
			t.Errorf("SliceIntFromBytes(%v,%d,%d) = %d, want %d", c.buf, c.startBit, c.nbits, got, c.want)
		}
	}
}

func TestByteAlign(t *testing.T) {
	cases := map[int]int{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 17: 24}
	for n, want := range cases {
		if got := ByteAlign(n); got != want {
			t.Errorf("ByteAlign(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestAppendAndSliceRoundTrip(t *testing.T) {
	b := NewBits()
	if err := b.Append(5, 0x1b); err != nil { // 11011
		t.Fatal(err)
	}
	if err := b.Append(11, 0x3cf); err != nil {
		t.Fatal(err)
	}
	if b.GetSize() != 16 {
		t.Fatalf("size = %d, want 16", b.GetSize())
	}
	first, err := b.Slice(0, 5)
	if err != nil {
		t.Fatal(err)
	}
	if v := SliceIntFromBytes(first.ToBytes(), 0, 5); v != 0x1b {
		t.Errorf("first slice = %x, want 0x1b", v)
	}
	second, err := b.Slice(5, 16)
	if err != nil {
		t.Fatal(err)
	}
	if v := SliceIntFromBytes(second.ToBytes(), 0, 11); v != 0x3cf {
		t.Errorf("second slice = %x, want 0x3cf", v)
	}
}

func TestConcatAndCompare(t *testing.T) {
	a, _ := FromUint(0b101, 3)
	b, _ := FromUint(0b110, 3)
	ab, err := Concat(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if ab.GetSize() != 6 {
		t.Fatalf("size = %d, want 6", ab.GetSize())
	}
	if v := SliceIntFromBytes(ab.ToBytes(), 0, 6); v != 0b101110 {
		t.Errorf("concat = %b, want 101110", v)
	}
	if Compare(a, b) >= 0 {
		t.Errorf("expected a < b")
	}
	if Compare(a, a) != 0 {
		t.Errorf("expected a == a")
	}
}

func TestXor(t *testing.T) {
	a, _ := FromUint(0b1010, 4)
	b, _ := FromUint(0b0110, 4)
	x, err := Xor(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if v := SliceIntFromBytes(x.ToBytes(), 0, 4); v != 0b1100 {
		t.Errorf("xor = %b, want 1100", v)
	}
}

func TestCapacityExceeded(t *testing.T) {
	b := NewBits()
	for i := 0; i < 10; i++ {
		if err := b.Append(64, ^uint64(0)); err != nil {
			t.Fatalf("unexpected error at iteration %d: %v", i, err)
		}
	}
	if err := b.Append(1, 1); err == nil {
		t.Fatal("expected capacity exceeded error")
	}
}

func TestParkBitsCapacity(t *testing.T) {
	p := NewParkBits()
	if err := p.Append(64, 0); err != nil {
		t.Fatal(err)
	}
	if p.max != MaxParkBits {
		t.Fatalf("max = %d, want %d", p.max, MaxParkBits)
	}
}
