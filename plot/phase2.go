package plot

// RunPhase2 performs backpropagation (§4.5): table 7 is kept whole (every
// entry is a candidate proof component), then each earlier table is
// pruned down to only the entries some kept entry in the table above
// still points to, discarding everything f-chain-unreachable from a
// table-7 entry. PosL/PosR pointers are rewritten to index the
// compacted tables.
//
// The reference streams this pass with a sliding read/write window
// bounded by ReadMinusWriteGap and CachedPositionsWindow, since it
// cannot hold every table in memory; this implementation tracks
// reachability with in-memory sets instead; see package sortdisk's doc
// comment for the same memory-residency tradeoff applied to sorting.
func RunPhase2(tables []Table) ([]Table, error) {
	n := len(tables)
	if n == 0 {
		return nil, nil
	}

	reachable := make([]map[uint64]bool, n)
	reachable[n-1] = make(map[uint64]bool, len(tables[n-1]))
	for i := range tables[n-1] {
		reachable[n-1][uint64(i)] = true
	}
	for t := n - 1; t >= 1; t-- {
		below := make(map[uint64]bool)
		for idx := range reachable[t] {
			e := tables[t][idx]
			below[e.PosL] = true
			below[e.PosR] = true
		}
		reachable[t-1] = below
	}

	pruned := make([]Table, n)
	oldToNew := make([]map[uint64]uint64, n)
	for t := 0; t < n; t++ {
		keep := reachable[t]
		m := make(map[uint64]uint64, len(keep))
		tbl := make(Table, 0, len(keep))
		for i, e := range tables[t] {
			if !keep[uint64(i)] {
				continue
			}
			m[uint64(i)] = uint64(len(tbl))
			tbl = append(tbl, e)
		}
		pruned[t] = tbl
		oldToNew[t] = m
	}

	for t := 1; t < n; t++ {
		for i := range pruned[t] {
			pruned[t][i].PosL = oldToNew[t-1][pruned[t][i].PosL]
			pruned[t][i].PosR = oldToNew[t-1][pruned[t][i].PosR]
		}
	}
	return pruned, nil
}
