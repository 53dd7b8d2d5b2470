package plot

import "testing"

func runThroughPhase3(t *testing.T, k int) (Table, []uint64) {
	t.Helper()
	tables, err := RunPhase1(testSeed(), k, 1<<20)
	if err != nil {
		t.Fatal(err)
	}
	pruned, err := RunPhase2(tables)
	if err != nil {
		t.Fatal(err)
	}
	compressed, err := RunPhase3(k, pruned)
	if err != nil {
		t.Fatal(err)
	}
	last := compressed[len(compressed)-1]
	if last.TableIndex != NumTables-1 {
		t.Fatalf("last compressed table has index %d, want %d", last.TableIndex, NumTables-1)
	}
	if last.Pos == nil {
		t.Fatal("expected Pos to be populated for the final table pair")
	}
	return pruned[NumTables-1], last.Pos
}

func TestRunPhase4BuildsConsistentCheckpoints(t *testing.T) {
	k := MinK
	t7, pos6 := runThroughPhase3(t, k)

	cp, err := RunPhase4(k, t7, pos6)
	if err != nil {
		t.Fatal(err)
	}

	wantP7Parks := (len(t7) + EntriesPerPark - 1) / EntriesPerPark
	if len(cp.P7Parks) != wantP7Parks {
		t.Fatalf("got %d P7 parks, want %d", len(cp.P7Parks), wantP7Parks)
	}
	wantParkBytes := parkByteSize(EntriesPerPark * (k + 1))
	for i, park := range cp.P7Parks {
		if len(park) != wantParkBytes {
			t.Fatalf("P7 park %d is %d bytes, want %d", i, len(park), wantParkBytes)
		}
	}

	wantC1 := int(C1Count(uint64(len(t7))))
	if len(cp.C1) != wantC1 {
		t.Fatalf("got %d C1 entries, want %d", len(cp.C1), wantC1)
	}
	wantC2 := int(C2Count(uint64(len(t7))))
	if len(cp.C2) != wantC2 {
		t.Fatalf("got %d C2 entries, want %d", len(cp.C2), wantC2)
	}
	for i := 1; i < len(cp.C1); i++ {
		if cp.C1[i-1] > cp.C1[i] {
			t.Fatalf("C1 not ascending at %d", i)
		}
	}
	for _, park := range cp.C3Parks {
		if len(park) != CalculateC3Size(k) {
			t.Fatalf("C3 park is %d bytes, want %d", len(park), CalculateC3Size(k))
		}
	}
}

func parkByteSize(bits int) int {
	return (bits + 7) / 8
}

func TestRunPhase4RejectsMismatchedLengths(t *testing.T) {
	t7 := Table{{Y: 1}, {Y: 2}}
	if _, err := RunPhase4(MinK, t7, []uint64{0}); err == nil {
		t.Fatal("expected an error when pos6 length does not match table7")
	}
}

func TestRunPhase4HandlesEmptyTable(t *testing.T) {
	cp, err := RunPhase4(MinK, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(cp.P7Parks) != 0 || len(cp.C1) != 0 || len(cp.C2) != 0 {
		t.Fatal("expected an empty Checkpoints for an empty table")
	}
}
