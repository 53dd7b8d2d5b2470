// Package sortdisk implements the two sort strategies the plotter uses to
// order fixed-width records by a prefix of their bits (§4.4): an in-place
// quicksort for runs that fit the memory budget, and a bucketed sort that
// partitions by a few bits at a time and recurses, for runs that don't.
//
// Both operate on records packed back-to-back in a single []byte, the
// shape every plot-table pass already holds its working set in. The
// reference implementation streams the bucketed path through spare disk
// regions so the resident set stays bounded; this package still buffers
// each bucket through a BucketStore before recursing; rather than a second
// on-disk spare region, the drained bucket is copied to a freshly
// allocated slice, since a Go process already holds its working table in
// memory and the page cache absorbs the rest.
package sortdisk

import (
	"fmt"

	"github.com/provespace/pospace/internal/bitio"
)

const (
	// BucketLog is the number of bits consumed per bucketing pass (§4.4).
	BucketLog = 4
	NumBuckets = 1 << BucketLog

	segmentRecords = 4096
)

// recordCompare orders record i against record j by the bits of each
// record starting at bitOffset (inclusive) through the record's end,
// treating both as big-endian unsigned integers.
func recordCompare(buf []byte, entryLen, bitOffset, i, j int) int {
	oi := i * entryLen
	oj := j * entryLen
	ri := buf[oi : oi+entryLen]
	rj := buf[oj : oj+entryLen]
	totalBits := entryLen * 8
	for pos := bitOffset; pos < totalBits; {
		take := totalBits - pos
		if take > 64 {
			take = 64
		}
		vi := bitio.SliceIntFromBytes(ri, pos, take)
		vj := bitio.SliceIntFromBytes(rj, pos, take)
		if vi < vj {
			return -1
		}
		if vi > vj {
			return 1
		}
		pos += take
	}
	return 0
}

func swapRecords(buf []byte, entryLen, i, j int) {
	if i == j {
		return
	}
	oi := i * entryLen
	oj := j * entryLen
	tmp := make([]byte, entryLen)
	copy(tmp, buf[oi:oi+entryLen])
	copy(buf[oi:oi+entryLen], buf[oj:oj+entryLen])
	copy(buf[oj:oj+entryLen], tmp)
}

// QuicksortBytes sorts the entryLen-wide records packed in buf in place,
// ordering by the bits at and after bitOffset. It uses Lomuto partitioning
// with a median-of-three pivot and always works on the smaller partition
// first, deferring the larger one to an explicit stack, so stack depth is
// O(log n) even on adversarial input (§4.4 step 1).
func QuicksortBytes(buf []byte, entryLen, bitOffset int) error {
	if entryLen <= 0 || len(buf)%entryLen != 0 {
		return fmt.Errorf("sortdisk: buffer length %d is not a multiple of entry length %d", len(buf), entryLen)
	}
	n := len(buf) / entryLen
	if n < 2 {
		return nil
	}

	type frame struct{ lo, hi int }
	stack := make([]frame, 0, 64)
	stack = append(stack, frame{0, n - 1})
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		lo, hi := f.lo, f.hi
		for lo < hi {
			p := partition(buf, entryLen, bitOffset, lo, hi)
			left, right := p-lo, hi-p
			if left < right {
				if p+1 < hi {
					stack = append(stack, frame{p + 1, hi})
				}
				hi = p - 1
			} else {
				if lo < p-1 {
					stack = append(stack, frame{lo, p - 1})
				}
				lo = p + 1
			}
		}
	}
	return nil
}

func partition(buf []byte, entryLen, bitOffset, lo, hi int) int {
	mid := lo + (hi-lo)/2
	if recordCompare(buf, entryLen, bitOffset, lo, mid) > 0 {
		swapRecords(buf, entryLen, lo, mid)
	}
	if recordCompare(buf, entryLen, bitOffset, lo, hi) > 0 {
		swapRecords(buf, entryLen, lo, hi)
	}
	if recordCompare(buf, entryLen, bitOffset, mid, hi) > 0 {
		swapRecords(buf, entryLen, mid, hi)
	}
	swapRecords(buf, entryLen, mid, hi)
	pivot := hi

	i := lo - 1
	for j := lo; j < hi; j++ {
		if recordCompare(buf, entryLen, bitOffset, j, pivot) <= 0 {
			i++
			swapRecords(buf, entryLen, i, j)
		}
	}
	swapRecords(buf, entryLen, i+1, hi)
	return i + 1
}

// BucketSort orders the entryLen-wide records in buf by the bits at and
// after bitOffset. When the working set fits memoryBudget it falls
// straight through to QuicksortBytes; otherwise it distributes records
// into NumBuckets groups by their next BucketLog bits via a BucketStore,
// drains the heaviest bucket first (§4.4 step 3), and recurses on each
// bucket's span with bitOffset advanced by BucketLog.
func BucketSort(buf []byte, entryLen, bitOffset, memoryBudget int) error {
	if entryLen <= 0 || len(buf)%entryLen != 0 {
		return fmt.Errorf("sortdisk: buffer length %d is not a multiple of entry length %d", len(buf), entryLen)
	}
	n := len(buf) / entryLen
	if n < 2 {
		return nil
	}
	if len(buf) <= memoryBudget || bitOffset+BucketLog > entryLen*8 {
		return QuicksortBytes(buf, entryLen, bitOffset)
	}

	store := NewBucketStore(entryLen, NumBuckets, segmentRecords, n)
	for i := 0; i < n; i++ {
		off := i * entryLen
		rec := buf[off : off+entryLen]
		b := int(bitio.SliceIntFromBytes(rec, bitOffset, BucketLog))
		if err := store.Push(b, rec); err != nil {
			return fmt.Errorf("sortdisk: distributing record %d: %w", i, err)
		}
	}

	// Record each bucket's placement before draining destroys the counts,
	// then write every remaining buffered record out in bucket order.
	counts := make([]int, NumBuckets)
	for b := 0; b < NumBuckets; b++ {
		counts[b] = store.Count(b)
	}
	offsets := make([]int, NumBuckets+1)
	for b := 0; b < NumBuckets; b++ {
		offsets[b+1] = offsets[b] + counts[b]
	}
	cursor := append([]int(nil), offsets[:NumBuckets]...)
	for !store.Empty() {
		b, ok := store.HeaviestBucket()
		if !ok {
			break
		}
		seg, ok := store.PopSegment(b)
		if !ok {
			continue
		}
		segN := len(seg) / entryLen
		dstStart := cursor[b] * entryLen
		copy(buf[dstStart:dstStart+len(seg)], seg)
		cursor[b] += segN
	}

	for b := 0; b < NumBuckets; b++ {
		lo, hi := offsets[b], offsets[b+1]
		if hi-lo < 2 {
			continue
		}
		sub := buf[lo*entryLen : hi*entryLen]
		if err := BucketSort(sub, entryLen, bitOffset+BucketLog, memoryBudget); err != nil {
			return err
		}
	}
	return nil
}
