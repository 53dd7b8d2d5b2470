package plot

import "testing"

func TestRunPhase2PrunesUnreachableAndPreservesOrder(t *testing.T) {
	k := MinK
	tables, err := RunPhase1(testSeed(), k, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	pruned, err := RunPhase2(tables)
	if err != nil {
		t.Fatal(err)
	}
	if len(pruned) != len(tables) {
		t.Fatalf("got %d tables, want %d", len(pruned), len(tables))
	}
	if len(pruned[NumTables-1]) != len(tables[NumTables-1]) {
		t.Fatal("table 7 should be kept whole by backpropagation")
	}
	for tbl := 0; tbl < NumTables; tbl++ {
		if len(pruned[tbl]) > len(tables[tbl]) {
			t.Fatalf("table %d grew during pruning: %d > %d", tbl+1, len(pruned[tbl]), len(tables[tbl]))
		}
		for i := 1; i < len(pruned[tbl]); i++ {
			if pruned[tbl][i-1].Y > pruned[tbl][i].Y {
				t.Fatalf("table %d lost Y ordering after pruning at %d", tbl+1, i)
			}
		}
	}
	for tbl := 1; tbl < NumTables; tbl++ {
		for i, e := range pruned[tbl] {
			if int(e.PosL) >= len(pruned[tbl-1]) || int(e.PosR) >= len(pruned[tbl-1]) {
				t.Fatalf("table %d entry %d has an out-of-range back-pointer after remapping", tbl+1, i)
			}
		}
	}
}
