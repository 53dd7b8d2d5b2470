package plot

import (
	"encoding/binary"
	"fmt"

	"github.com/provespace/pospace/internal/sortdisk"
)

// sortIndicesByY returns a permutation of [0, len(ys)) that orders the
// given y-values ascending, breaking ties by original index. It packs
// (y, index) pairs into fixed-width records and sorts them with
// internal/sortdisk; phase 1 uses it to order every table by y (§4.3,
// §4.4). Phase 3 sorts by line point with sort.Slice instead.
func sortIndicesByY(ys []uint64, memoryBudget int) ([]int, error) {
	n := len(ys)
	const entryLen = 16
	buf := make([]byte, n*entryLen)
	for i, y := range ys {
		off := i * entryLen
		binary.BigEndian.PutUint64(buf[off:off+8], y)
		binary.BigEndian.PutUint64(buf[off+8:off+16], uint64(i))
	}
	if err := sortdisk.BucketSort(buf, entryLen, 0, memoryBudget); err != nil {
		return nil, fmt.Errorf("plot: sorting by y: %w", err)
	}
	order := make([]int, n)
	for i := 0; i < n; i++ {
		off := i * entryLen
		order[i] = int(binary.BigEndian.Uint64(buf[off+8 : off+16]))
	}
	return order, nil
}
