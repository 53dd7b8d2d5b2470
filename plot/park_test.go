package plot

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/provespace/pospace/internal/ans"
)

// randomAscendingLinePoints produces n ascending values with small,
// bounded gaps between consecutive entries, so each gap's delta (after
// peeling off the low stubBits) fits the one-byte-per-delta park format
// regardless of k.
func randomAscendingLinePoints(r *rand.Rand, k, n int) []*big.Int {
	vals := make([]uint64, n)
	v := uint64(0)
	for i := range vals {
		v += r.Uint64()%(1<<18) + 1
		vals[i] = v
	}
	points := make([]*big.Int, n)
	for i, v := range vals {
		points[i] = new(big.Int).SetUint64(v)
	}
	return points
}

func TestParkEncodeDecodeRoundTrip(t *testing.T) {
	k := 20
	r := rand.New(rand.NewSource(7))
	points := randomAscendingLinePoints(r, k, EntriesPerPark)

	coder := ans.NewCoder()
	encoded, err := EncodePark(coder, k, 2, points)
	if err != nil {
		t.Fatal(err)
	}
	if len(encoded) != ParkSize(k, 2) {
		t.Fatalf("encoded park is %d bytes, want %d", len(encoded), ParkSize(k, 2))
	}

	decoded, err := DecodePark(coder, k, 2, len(points), encoded)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != len(points) {
		t.Fatalf("decoded %d points, want %d", len(decoded), len(points))
	}
	for i := range points {
		if points[i].Cmp(decoded[i]) != 0 {
			t.Fatalf("entry %d mismatch: got %v, want %v", i, decoded[i], points[i])
		}
	}
}

func TestParkEncodeDecodePartialPark(t *testing.T) {
	k := 18
	r := rand.New(rand.NewSource(11))
	points := randomAscendingLinePoints(r, k, 37)

	coder := ans.NewCoder()
	encoded, err := EncodePark(coder, k, 4, points)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodePark(coder, k, 4, len(points), encoded)
	if err != nil {
		t.Fatal(err)
	}
	for i := range points {
		if points[i].Cmp(decoded[i]) != 0 {
			t.Fatalf("entry %d mismatch: got %v, want %v", i, decoded[i], points[i])
		}
	}
}

func TestParkEncodeRejectsDescendingPoints(t *testing.T) {
	coder := ans.NewCoder()
	points := []*big.Int{big.NewInt(100), big.NewInt(50)}
	if _, err := EncodePark(coder, 20, 2, points); err == nil {
		t.Fatal("expected an error for a non-ascending point sequence")
	}
}

func TestCalculateC3SizeBranchesOnK(t *testing.T) {
	small := CalculateC3Size(18)
	large := CalculateC3Size(32)
	if small != 10000 {
		t.Fatalf("k<20 C3 size = %d, want %d", small, CheckpointInterval1)
	}
	if large <= 0 {
		t.Fatal("k>=20 C3 size should be positive")
	}
}
