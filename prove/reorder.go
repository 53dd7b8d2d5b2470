package prove

import (
	"fmt"

	"github.com/provespace/pospace/internal/bitio"
	"github.com/provespace/pospace/plot"
)

// reorderProof converts 64 leaf x-values in plot ordering (as GetInputs
// recovers them, following whichever subtree LinePointToSquare called
// larger/smaller at each level) into proof ordering, where every
// adjacent pair (x_{2i}, x_{2i+1}) is the (left, right) bucket pair its
// own table actually matched on. Plot ordering and bucket-left/right
// identity are unrelated — phase 3's compression resorts every table by
// line point, which is not order-preserving — so the only way back is
// to recompute f1..f6 bottom-up and let each pair's own y-values decide
// which leaf group goes left (§4.9 step 3).
func reorderProof(seed [32]byte, k int, leaves []uint64) ([]uint64, error) {
	if len(leaves) != 1<<(plot.NumTables-1) {
		return nil, fmt.Errorf("prove: reorderProof expects %d leaves, got %d", 1<<(plot.NumTables-1), len(leaves))
	}

	f1, err := plot.NewF1(seed, k)
	if err != nil {
		return nil, err
	}
	type node struct {
		y      uint64
		meta   bitio.Bits
		leaves []uint64
	}
	nodes := make([]node, len(leaves))
	for i, x := range leaves {
		meta, err := bitio.FromUint(x, k)
		if err != nil {
			return nil, fmt.Errorf("prove: reorderProof: table1 metadata: %w", err)
		}
		nodes[i] = node{y: f1.Eval(x), meta: meta, leaves: []uint64{x}}
	}

	for t := 2; t <= plot.NumTables; t++ {
		fx, err := plot.NewFx(seed, k, t)
		if err != nil {
			return nil, err
		}
		next := make([]node, 0, len(nodes)/2)
		for i := 0; i < len(nodes); i += 2 {
			a, b := nodes[i], nodes[i+1]
			var y uint64
			var meta bitio.Bits
			var ordered []uint64
			if a.y < b.y {
				y, meta, err = fx.Eval(a.y, b.y, a.meta, b.meta)
				ordered = append(append([]uint64{}, a.leaves...), b.leaves...)
			} else {
				y, meta, err = fx.Eval(b.y, a.y, b.meta, a.meta)
				ordered = append(append([]uint64{}, b.leaves...), a.leaves...)
			}
			if err != nil {
				return nil, fmt.Errorf("prove: reorderProof: table %d: %w", t, err)
			}
			next = append(next, node{y: y, meta: meta, leaves: ordered})
		}
		nodes = next
	}

	if len(nodes) != 1 {
		return nil, fmt.Errorf("prove: reorderProof: expected to collapse to 1 node, got %d", len(nodes))
	}
	return nodes[0].leaves, nil
}
