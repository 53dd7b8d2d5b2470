// Package matching implements the bucketed matching algorithm (§4.3) that
// decides which table-t entries combine to produce table-(t+1) entries.
package matching

import (
	"fmt"
	"sync"
)

const (
	// B, C and BC mirror plot.B/plot.C/plot.BC; duplicated here (rather
	// than importing package plot) to keep this package free of a
	// dependency on the rest of the plotter, since the matching
	// invariant is pure arithmetic independent of k.
	B  = 60
	C  = 509
	BC = B * C

	// NumM is 2^e, the number of candidate offsets per the matching
	// invariant (§3 invariant 1).
	NumM = 32
)

// targets[parity][yLocal][m] holds the unique yR mod BC value that
// matches a left entry with (yL mod BC == yLocal, floor(yL/BC) parity ==
// parity) at offset m, per the matching invariant in §3. It is the
// dominant match-time memory cost (~31 MiB) and is computed once per
// process (§4.3, §9 design notes: lazily-initialized immutable resource,
// not per-evaluator state).
var (
	targetsOnce  sync.Once
	targetsTable [2][BC][NumM]uint16
)

func ensureTargets() {
	targetsOnce.Do(func() {
		for parity := 0; parity < 2; parity++ {
			for yLocal := 0; yLocal < BC; yLocal++ {
				bPart := yLocal / C
				cPart := yLocal % C
				for m := 0; m < NumM; m++ {
					br := (bPart + m) % B
					shift := 2*m + parity
					cr := (cPart + shift*shift) % C
					targetsTable[parity][yLocal][m] = uint16(br*C + cr)
				}
			}
		}
	})
}

// Matcher holds the reusable scratch state find_matches needs across
// calls: a bucket-sized map from yR's BC-local residue to the indices in
// the current right bucket that carry it, cleared via an explicit dirty
// list rather than a full re-zero each call (§4.3).
type Matcher struct {
	rmap  [BC][]uint32
	dirty []int
}

// NewMatcher returns a ready-to-use Matcher. The matching target table is
// computed (once, process-wide) the first time it's needed.
func NewMatcher() *Matcher {
	ensureTargets()
	return &Matcher{}
}

func (m *Matcher) reset() {
	for _, idx := range m.dirty {
		m.rmap[idx] = m.rmap[idx][:0]
	}
	m.dirty = m.dirty[:0]
}

// Pair is one matching (left-bucket-index, right-bucket-index) pair.
type Pair struct {
	I, J int
}

// FindMatches returns every matching pair between bucketL (all sharing
// floor(y/BC) == bL) and bucketR (all sharing floor(y/BC) == bL+1), in
// increasing (i, m, j) order (§4.3). ys are the raw y-values of each
// bucket's entries, indexed in on-disk order.
func (m *Matcher) FindMatches(bucketL, bucketR []uint64) ([]Pair, error) {
	if len(bucketL) == 0 || len(bucketR) == 0 {
		return nil, nil
	}
	bL := bucketL[0] / BC
	bR := bucketR[0] / BC
	if bR != bL+1 {
		return nil, fmt.Errorf("matching: buckets not adjacent: left bucket %d, right bucket %d", bL, bR)
	}

	m.reset()
	for j, yR := range bucketR {
		local := int(yR % BC)
		m.rmap[local] = append(m.rmap[local], uint32(j))
		m.dirty = append(m.dirty, local)
	}

	parity := int(bL % 2)
	var pairs []Pair
	for i, yL := range bucketL {
		local := int(yL % BC)
		row := &targetsTable[parity][local]
		for mm := 0; mm < NumM; mm++ {
			target := int(row[mm])
			for _, j := range m.rmap[target] {
				pairs = append(pairs, Pair{I: i, J: int(j)})
			}
		}
	}
	return pairs, nil
}
