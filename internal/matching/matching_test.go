package matching

import "testing"

// verifyPair recomputes the matching invariant (§3 invariant 1) directly
// from yL/yR, independent of the precomputed targets table, so the test
// does not just check the table against itself.
func verifyPair(yL, yR uint64) bool {
	bL := yL / BC
	bR := yR / BC
	if bR != bL+1 {
		return false
	}
	yLLocal := int(yL % BC)
	yRLocal := int(yR % BC)
	parity := int(bL % 2)
	for m := 0; m < NumM; m++ {
		bDiff := ((yRLocal/C - yLLocal/C - m) % B + B) % B
		if bDiff != 0 {
			continue
		}
		shift := 2*m + parity
		cDiff := ((yRLocal%C - yLLocal%C - shift*shift) % C + C) % C
		if cDiff == 0 {
			return true
		}
	}
	return false
}

func TestFindMatchesSatisfiesInvariant(t *testing.T) {
	m := NewMatcher()
	bL := uint64(3)
	bucketL := []uint64{bL*BC + 10, bL*BC + 200, bL*BC + 29999}
	bucketR := make([]uint64, 0, BC)
	for v := uint64(0); v < BC; v += 37 {
		bucketR = append(bucketR, (bL+1)*BC+v)
	}

	pairs, err := m.FindMatches(bucketL, bucketR)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) == 0 {
		t.Fatal("expected at least one match from a dense right bucket scan")
	}
	for _, p := range pairs {
		if !verifyPair(bucketL[p.I], bucketR[p.J]) {
			t.Errorf("pair (%d,%d) y=(%d,%d) does not satisfy the matching invariant", p.I, p.J, bucketL[p.I], bucketR[p.J])
		}
	}
}

func TestFindMatchesNoDuplicatesAndOrdered(t *testing.T) {
	m := NewMatcher()
	bL := uint64(7)
	bucketL := []uint64{bL*BC + 5, bL*BC + 6, bL*BC + 7}
	bucketR := []uint64{(bL + 1) * BC, (bL+1)*BC + 1, (bL+1)*BC + 2, (bL+1)*BC + 3}

	pairs, err := m.FindMatches(bucketL, bucketR)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[Pair]bool{}
	for _, p := range pairs {
		if seen[p] {
			t.Errorf("duplicate pair %v", p)
		}
		seen[p] = true
	}
	// m is recoverable from a pair as the B-part difference of the locals.
	mOf := func(p Pair) int {
		return ((int(bucketR[p.J]%BC)/C-int(bucketL[p.I]%BC)/C)%B + B) % B
	}
	for i := 1; i < len(pairs); i++ {
		a, b := pairs[i-1], pairs[i]
		ma, mb := mOf(a), mOf(b)
		if a.I > b.I || (a.I == b.I && (ma > mb || (ma == mb && a.J > b.J))) {
			t.Errorf("pairs not in increasing (i,m,j) order at %d: %v then %v", i, a, b)
		}
	}
}

func TestFindMatchesRejectsNonAdjacentBuckets(t *testing.T) {
	m := NewMatcher()
	_, err := m.FindMatches([]uint64{0}, []uint64{2 * BC})
	if err == nil {
		t.Fatal("expected an error for non-adjacent buckets")
	}
}

func TestFindMatchesEmptyBucket(t *testing.T) {
	m := NewMatcher()
	pairs, err := m.FindMatches(nil, []uint64{BC})
	if err != nil {
		t.Fatal(err)
	}
	if pairs != nil {
		t.Fatalf("expected no pairs for an empty bucket, got %v", pairs)
	}
}
