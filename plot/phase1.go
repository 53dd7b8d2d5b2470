package plot

import (
	"fmt"

	"github.com/provespace/pospace/internal/bitio"
	"github.com/provespace/pospace/internal/matching"
)

// Entry is one row of a table, kept in memory for the k range this
// implementation targets. Y is the f-function output; Meta is the
// metadata fed into the next table's f-function (empty for table 7);
// PosL/PosR index the matching pair of entries in the previous table
// that produced this one (unused, zero, for table 1).
type Entry struct {
	Y    uint64
	Meta bitio.Bits
	PosL uint64
	PosR uint64
}

// Table is one table's entries, in the order phase 1 leaves them: sorted
// ascending by Y.
type Table []Entry

// RunPhase1 performs forward propagation (§4.2, §4.3): it computes table
// 1 directly from F1 over every k-bit x, then repeatedly matches
// adjacent-bucket pairs in table t and evaluates Fx to build table t+1,
// through table 7. The returned slice holds tables 1..7 at indices 0..6,
// each sorted ascending by Y.
func RunPhase1(seed [32]byte, k int, memoryBudget int) ([]Table, error) {
	if !ValidateK(k) {
		return nil, fmt.Errorf("plot: k=%d out of range [%d,%d]", k, MinK, MaxK)
	}

	f1, err := NewF1(seed, k)
	if err != nil {
		return nil, fmt.Errorf("plot: phase1: %w", err)
	}

	n := uint64(1) << uint(k)
	table1 := make(Table, n)
	for x := uint64(0); x < n; x++ {
		meta, err := bitio.FromUint(x, k)
		if err != nil {
			return nil, fmt.Errorf("plot: phase1: table1 metadata for x=%d: %w", x, err)
		}
		table1[x] = Entry{Y: f1.Eval(x), Meta: meta}
	}
	if err := sortTableByY(table1, memoryBudget); err != nil {
		return nil, fmt.Errorf("plot: phase1: sorting table 1: %w", err)
	}

	tables := make([]Table, NumTables)
	tables[0] = table1

	for t := 2; t <= NumTables; t++ {
		fx, err := NewFx(seed, k, t)
		if err != nil {
			return nil, fmt.Errorf("plot: phase1: table %d: %w", t, err)
		}
		next, err := matchTable(fx, tables[t-2])
		if err != nil {
			return nil, fmt.Errorf("plot: phase1: matching into table %d: %w", t, err)
		}
		if err := sortTableByY(next, memoryBudget); err != nil {
			return nil, fmt.Errorf("plot: phase1: sorting table %d: %w", t, err)
		}
		tables[t-1] = next
	}
	return tables, nil
}

// sortTableByY reorders table in place to ascending Y order.
func sortTableByY(table Table, memoryBudget int) error {
	ys := make([]uint64, len(table))
	for i, e := range table {
		ys[i] = e.Y
	}
	order, err := sortIndicesByY(ys, memoryBudget)
	if err != nil {
		return err
	}
	sorted := make(Table, len(table))
	for newIdx, oldIdx := range order {
		sorted[newIdx] = table[oldIdx]
	}
	copy(table, sorted)
	return nil
}

// matchTable scans prev (already sorted by Y) for adjacent-bucket
// matches and evaluates fx over every match to build the next table.
func matchTable(fx *Fx, prev Table) (Table, error) {
	m := matching.NewMatcher()
	var next Table

	ranges := bucketRanges(prev)
	for i := 0; i+1 < len(ranges); i++ {
		left, right := ranges[i], ranges[i+1]
		if right.bucket != left.bucket+1 {
			continue
		}
		leftYs := ysOf(prev[left.lo:left.hi])
		rightYs := ysOf(prev[right.lo:right.hi])

		pairs, err := m.FindMatches(leftYs, rightYs)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			posL := uint64(left.lo + p.I)
			posR := uint64(right.lo + p.J)
			if posR-posL >= MaxOffset {
				return nil, fmt.Errorf("%w: back-pointer offset %d (posL=%d, posR=%d)", ErrBucketCrowded, posR-posL, posL, posR)
			}
			l := prev[left.lo+p.I]
			r := prev[right.lo+p.J]
			y, meta, err := fx.Eval(l.Y, r.Y, l.Meta, r.Meta)
			if err != nil {
				return nil, fmt.Errorf("evaluating match (posL=%d, posR=%d): %w", posL, posR, err)
			}
			next = append(next, Entry{
				Y:    y,
				Meta: meta,
				PosL: posL,
				PosR: posR,
			})
		}
	}
	return next, nil
}

func ysOf(entries Table) []uint64 {
	ys := make([]uint64, len(entries))
	for i, e := range entries {
		ys[i] = e.Y
	}
	return ys
}

type bucketRange struct {
	bucket   uint64
	lo, hi int
}

// bucketRanges partitions a Y-sorted table into contiguous runs sharing
// the same floor(Y/BC) bucket index.
func bucketRanges(table Table) []bucketRange {
	if len(table) == 0 {
		return nil
	}
	var ranges []bucketRange
	lo := 0
	bucket := table[0].Y / BC
	for i := 1; i <= len(table); i++ {
		if i == len(table) || table[i].Y/BC != bucket {
			ranges = append(ranges, bucketRange{bucket: bucket, lo: lo, hi: i})
			if i < len(table) {
				lo = i
				bucket = table[i].Y / BC
			}
		}
	}
	return ranges
}
