// Package verify implements proof-of-space validation (§4.10): given a
// seed, challenge and a 64-leaf proof, it re-derives the match chain
// from scratch and confirms the proof is consistent with the challenge,
// independent of any plot file.
package verify

import (
	"fmt"

	"github.com/provespace/pospace/internal/bitio"
	"github.com/provespace/pospace/internal/matching"
	"github.com/provespace/pospace/plot"
	"github.com/provespace/pospace/prove"
)

// ProofSize is the byte length of a k-parameter proof: 64 concatenated
// k-bit x-values, byte-aligned.
func ProofSize(k int) int {
	return bitio.ByteAlign(64 * k) / 8
}

// ValidateProof checks proof against challenge under the plot identified
// by seed and k. A proof whose length is not ProofSize(k) is an error. A
// correctly sized proof that does not match is a normal, non-error
// outcome: the bool result distinguishes it, and quality is only
// meaningful when it is true (§7).
func ValidateProof(seed [32]byte, k int, challenge [32]byte, proof []byte) (bool, [32]byte, error) {
	if len(proof) != ProofSize(k) {
		return false, [32]byte{}, fmt.Errorf("verify: proof is %d bytes, want %d for k=%d", len(proof), ProofSize(k), k)
	}

	const numLeaves = 1 << (plot.NumTables - 1)
	xs := make([]uint64, numLeaves)
	for i := range xs {
		xs[i] = bitio.SliceIntFromBytes(proof, i*k, k)
	}

	f1, err := plot.NewF1(seed, k)
	if err != nil {
		return false, [32]byte{}, err
	}
	ys := make([]uint64, numLeaves)
	metas := make([]bitio.Bits, numLeaves)
	for i, x := range xs {
		meta, err := bitio.FromUint(x, k)
		if err != nil {
			return false, [32]byte{}, fmt.Errorf("verify: table1 metadata: %w", err)
		}
		ys[i] = f1.Eval(x)
		metas[i] = meta
	}

	m := matching.NewMatcher()
	for depth := 2; depth <= plot.NumTables; depth++ {
		fx, err := plot.NewFx(seed, k, depth)
		if err != nil {
			return false, [32]byte{}, err
		}
		nextYs := make([]uint64, 0, len(ys)/2)
		nextMetas := make([]bitio.Bits, 0, len(ys)/2)
		for i := 0; i < len(ys); i += 2 {
			pairs, err := m.FindMatches([]uint64{ys[i]}, []uint64{ys[i+1]})
			if err != nil || len(pairs) != 1 {
				return false, [32]byte{}, nil
			}
			y, meta, err := fx.Eval(ys[i], ys[i+1], metas[i], metas[i+1])
			if err != nil {
				return false, [32]byte{}, fmt.Errorf("verify: table %d: %w", depth, err)
			}
			nextYs = append(nextYs, y)
			nextMetas = append(nextMetas, meta)
		}
		ys, metas = nextYs, nextMetas
	}

	f7 := ys[0] >> plot.ExtraBits
	f7Target := bitio.SliceIntFromBytes(challenge[:], 0, k)
	if f7 != f7Target {
		return false, [32]byte{}, nil
	}

	last5 := uint64(challenge[31] & 0x1f)
	plotOrder := proofOrderToPlotOrder(xs)
	idx := 2 * last5
	q := prove.Quality(challenge, k, plotOrder[idx], plotOrder[idx+1])
	return true, q, nil
}

// proofOrderToPlotOrder reverses the merge ReorderProof performs: proof
// ordering groups leaves so each level's matched pair is arranged
// smaller-f-output first; this undoes that purely by comparing the raw
// leaf groups themselves, from the highest-indexed k-bit chunk down,
// exactly mirroring how the pairing was built one level at a time
// (§4.9's ReorderProof, run in reverse).
func proofOrderToPlotOrder(xs []uint64) []uint64 {
	cur := append([]uint64(nil), xs...)
	for level := 1; level <= plot.NumTables-1; level++ {
		size := 1 << (level - 1)
		next := make([]uint64, 0, len(cur))
		for j := 0; j < len(cur); j += 2 * size {
			left := cur[j : j+size]
			right := cur[j+size : j+2*size]
			if lessGroup(left, right) {
				next = append(next, left...)
				next = append(next, right...)
			} else {
				next = append(next, right...)
				next = append(next, left...)
			}
		}
		cur = next
	}
	return cur
}

// lessGroup compares two equal-length groups from the highest index
// down: the first group is "less" if its value at the first differing
// position (scanning from the end) is smaller.
func lessGroup(a, b []uint64) bool {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] < b[i] {
			return true
		}
		if a[i] > b[i] {
			return false
		}
	}
	return false
}
