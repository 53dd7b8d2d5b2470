package plot

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/provespace/pospace/internal/ans"
	"github.com/provespace/pospace/internal/bitio"
)

// CompressedTable holds one table-pair's compressed parks: table ti's
// park encodes line points built from table (ti+1)'s (PosL, PosR)
// pointers into table ti, for ti in [1, NumTables-1] (§4.6, §4.7).
type CompressedTable struct {
	TableIndex int    // ti, 1-based, identifies the (ti, ti+1) pair
	Parks      [][]byte
	NumEntries int // total entries represented across Parks

	// Pos is set only for the final pair (ti == NumTables-1, T7/T6): it
	// maps each T7 row, in T7's own Y-sorted order, to that row's
	// position within this park's line-point-sorted order — the
	// new_pos6 value phase 4 packs into the P7 table (§4.8).
	Pos []uint64
}

// RunPhase3 compresses the position-pair structure linking consecutive
// tables into sorted, delta-coded parks. For ti = 1..NumTables-2 it also
// re-sorts table ti+1 by line point and rewrites table ti+2's back
// pointers to match, so each table's own park (built on the next pass)
// stays line-point sorted; table NumTables (T7) is never reordered,
// since its Y order is what phase 4's checkpoint tables index — its
// park is built from a line-point-sorted scratch copy instead of an
// in-place resort (§4.6 design note).
func RunPhase3(k int, pruned []Table) ([]CompressedTable, error) {
	n := len(pruned)
	if n != NumTables {
		return nil, fmt.Errorf("plot: phase3 expects %d tables, got %d", NumTables, n)
	}

	table1 := pruned[0]
	compressed := make([]CompressedTable, NumTables-1)
	for ti := 1; ti <= NumTables-1; ti++ {
		right := pruned[ti] // table ti+1, 0-indexed at ti
		lps := make([]*big.Int, len(right))
		for i, e := range right {
			posL, posR := e.PosL, e.PosR
			if ti == 1 {
				// Table 1 is never written to disk, so the (1,2) pair's
				// line points must carry table 1's actual x values, not
				// its Y-sorted array indices — this is the one pair
				// whose park a reader can invert straight into leaf x
				// values, with no further table lookup.
				posL = xOfTable1(table1, posL, k)
				posR = xOfTable1(table1, posR, k)
			}
			lps[i] = SquareToLinePoint(posL, posR)
		}

		order := sortByLinePoint(lps)
		sortedLPs := make([]*big.Int, len(order))
		for newIdx, oldIdx := range order {
			sortedLPs[newIdx] = lps[oldIdx]
		}

		coder := ans.NewCoder()
		parks, err := buildParks(coder, k, ti, sortedLPs)
		if err != nil {
			return nil, fmt.Errorf("plot: phase3: table %d park: %w", ti+1, err)
		}
		ct := CompressedTable{TableIndex: ti, Parks: parks, NumEntries: len(sortedLPs)}

		if ti == NumTables-1 {
			pos := make([]uint64, len(order))
			for newIdx, oldIdx := range order {
				pos[oldIdx] = uint64(newIdx)
			}
			ct.Pos = pos
			compressed[ti-1] = ct
			continue // T7 stays Y-sorted; no table above it to remap
		}
		compressed[ti-1] = ct

		oldToNew := make([]uint64, len(order))
		for newIdx, oldIdx := range order {
			oldToNew[oldIdx] = uint64(newIdx)
		}
		reordered := make(Table, len(right))
		for newIdx, oldIdx := range order {
			reordered[newIdx] = right[oldIdx]
		}
		pruned[ti] = reordered

		if ti+1 < n {
			above := pruned[ti+1]
			for i := range above {
				above[i].PosL = oldToNew[above[i].PosL]
				above[i].PosR = oldToNew[above[i].PosR]
			}
		}
	}
	return compressed, nil
}

// sortByLinePoint returns a permutation of [0, len(lps)) ordering the
// line points ascending. Parks are sized for at most a few hundred
// thousand entries at the k range this implementation targets, well
// within an in-process comparison sort; internal/sortdisk is reserved
// for the much larger fixed-width Y-sort passes in phase 1.
func sortByLinePoint(lps []*big.Int) []int {
	order := make([]int, len(lps))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return lps[order[a]].Cmp(lps[order[b]]) < 0
	})
	return order
}

// xOfTable1 recovers the raw x value table 1's entry at pos was built
// from. Table 1's Meta field holds exactly FromUint(x, k) (§4.2).
func xOfTable1(table1 Table, pos uint64, k int) uint64 {
	return bitio.SliceIntFromBytes(table1[pos].Meta.ToBytes(), 0, k)
}

func buildParks(coder *ans.Coder, k, ti int, lps []*big.Int) ([][]byte, error) {
	var parks [][]byte
	for start := 0; start < len(lps); start += EntriesPerPark {
		end := start + EntriesPerPark
		if end > len(lps) {
			end = len(lps)
		}
		park, err := EncodePark(coder, k, ti, lps[start:end])
		if err != nil {
			return nil, fmt.Errorf("park %d: %w", start/EntriesPerPark, err)
		}
		parks = append(parks, park)
	}
	return parks, nil
}
