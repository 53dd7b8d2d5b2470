package plot

import (
	"fmt"

	"github.com/provespace/pospace/internal/ans"
	"github.com/provespace/pospace/internal/bitio"
)

// Checkpoints holds phase 4's output: the P7 position table and the
// C1/C2/C3 checkpoint tables built by streaming the final, f7-sorted
// table 7 (§4.8). There is no terminating sentinel entry; a reader
// derives len(C1) and len(C2) from the plot header's table-7 entry
// count and the checkpoint intervals (see plot/header.go).
type Checkpoints struct {
	P7Parks [][]byte // each EntriesPerPark entries of (k+1)-bit new_pos6
	C1      []uint64 // one k-bit f7 value every CheckpointInterval1 entries
	C2      []uint64 // one k-bit f7 value every CheckpointInterval1*CheckpointInterval2 entries
	C3Parks [][]byte // ANS-coded f7 deltas between consecutive C1 checkpoints
}

// C1Count and C2Count return the number of C1/C2 entries an f7-sorted
// table of n entries produces, without writing or scanning anything.
func C1Count(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return (n + CheckpointInterval1 - 1) / CheckpointInterval1
}

func C2Count(n uint64) uint64 {
	return C1Count(C1Count(n))
}

// RunPhase4 builds the checkpoint tables over table 7, which phase 3
// leaves sorted by f7 (Entry.Y). pos6 is the new_pos6 phase 3 produced
// for each table-7 row, in the same order as t7 (CompressedTable.Pos for
// the (6,7) pair).
func RunPhase4(k int, t7 Table, pos6 []uint64) (*Checkpoints, error) {
	if len(t7) != len(pos6) {
		return nil, fmt.Errorf("plot: phase4: table7 has %d entries, pos6 has %d", len(t7), len(pos6))
	}
	if len(t7) == 0 {
		return &Checkpoints{}, nil
	}

	coder := ans.NewCoder()
	cp := &Checkpoints{}

	p7bits := bitio.NewParkBits()
	flushP7 := func() {
		padded := make([]byte, bitio.ByteAlign(EntriesPerPark*(k+1))/8)
		copy(padded, p7bits.ToBytes())
		cp.P7Parks = append(cp.P7Parks, padded)
		p7bits = bitio.NewParkBits()
	}

	var deltas []byte
	flushC3 := func() error {
		encoded, err := coder.Encode(deltas)
		if err != nil {
			return fmt.Errorf("plot: phase4: c3 park %d: %w", len(cp.C3Parks), err)
		}
		size := CalculateC3Size(k)
		if len(encoded)+2 > size {
			return fmt.Errorf("plot: phase4: c3 park %d encodes to %d bytes, exceeds %d-byte budget", len(cp.C3Parks), len(encoded), size)
		}
		buf := make([]byte, size)
		buf[0] = byte(len(encoded) >> 8)
		buf[1] = byte(len(encoded))
		copy(buf[2:], encoded)
		cp.C3Parks = append(cp.C3Parks, buf)
		deltas = deltas[:0]
		return nil
	}

	var prevY uint64
	for i, e := range t7 {
		if i > 0 && i%EntriesPerPark == 0 {
			flushP7()
		}
		if err := p7bits.Append(k+1, pos6[i]); err != nil {
			return nil, fmt.Errorf("plot: phase4: packing new_pos6 at entry %d: %w", i, err)
		}

		y := e.Y >> ExtraBits // §4.8: C1/C2/C3 key on the k-bit f7, not the full (k+e)-bit y
		if i%CheckpointInterval1 == 0 {
			if i > 0 {
				if err := flushC3(); err != nil {
					return nil, err
				}
			}
			cp.C1 = append(cp.C1, y)
			if i%(CheckpointInterval1*CheckpointInterval2) == 0 {
				cp.C2 = append(cp.C2, y)
			}
		} else {
			d := y - prevY
			if d > 255 {
				return nil, fmt.Errorf("plot: phase4: f7 delta %d at entry %d exceeds one byte", d, i)
			}
			deltas = append(deltas, byte(d))
		}
		prevY = y
	}
	flushP7()
	if len(deltas) != 0 {
		if err := flushC3(); err != nil {
			return nil, err
		}
	}

	return cp, nil
}
