package sortdisk

import "github.com/bits-and-blooms/bitset"

// BucketStore holds a bounded population of fixed-width records, grouped
// by bucket index, inside fixed-size segments threaded through per-bucket
// stacks (§4.4 step 2). Free segments form a single free list; this
// separates the free list (a plain slice of segment indices) from the
// payload area, per the design notes' critique of the reference's
// type-punned in-payload pointers. A bitset tracks which segments are
// currently checked out, the same role the teacher's ext4 code gives
// bitset over a block group's data bitmap.
type BucketStore struct {
	entryLen    int
	segCapacity int // records per segment

	segments [][]byte // segments[i] is a segCapacity*entryLen byte arena
	next     []int    // next[i]: the segment below i in its bucket's stack, or -1
	filled   []int    // filled[i]: valid record count in segment i

	bucketTop   []int // bucketTop[b]: index of the top (most recently pushed) segment for bucket b, or -1
	bucketCount []int // bucketCount[b]: total records currently stored in bucket b

	free     []int        // indices of unused segments
	occupied *bitset.BitSet
}

// NewBucketStore allocates a store sized to hold capacity records total
// across numBuckets buckets, in segments of segCapacity records each.
func NewBucketStore(entryLen, numBuckets, segCapacity, capacity int) *BucketStore {
	// One extra segment per bucket covers each bucket's partly filled top
	// segment, so capacity records fit however they spread across buckets.
	numSegments := (capacity+segCapacity-1)/segCapacity + numBuckets
	bs := &BucketStore{
		entryLen:    entryLen,
		segCapacity: segCapacity,
		segments:    make([][]byte, numSegments),
		next:        make([]int, numSegments),
		filled:      make([]int, numSegments),
		bucketTop:   make([]int, numBuckets),
		bucketCount: make([]int, numBuckets),
		free:        make([]int, 0, numSegments),
		occupied:    bitset.New(uint(numSegments)),
	}
	for i := 0; i < numSegments; i++ {
		bs.segments[i] = make([]byte, segCapacity*entryLen)
		bs.free = append(bs.free, i)
	}
	for b := range bs.bucketTop {
		bs.bucketTop[b] = -1
	}
	return bs
}

// SegmentsInUse reports how many segments are currently checked out of the
// free list (i.e. hold live, undrained records).
func (bs *BucketStore) SegmentsInUse() uint {
	return bs.occupied.Count()
}

// ErrStoreFull is returned by Push when no free segment is available; the
// caller must drain a bucket (PopSegment) before retrying.
type ErrStoreFull struct{}

func (ErrStoreFull) Error() string { return "sortdisk: bucket store has no free segments" }

// Push appends one record to bucket b.
func (bs *BucketStore) Push(b int, record []byte) error {
	top := bs.bucketTop[b]
	if top == -1 || bs.filled[top] == bs.segCapacity {
		if len(bs.free) == 0 {
			return ErrStoreFull{}
		}
		seg := bs.free[len(bs.free)-1]
		bs.free = bs.free[:len(bs.free)-1]
		bs.occupied.Set(uint(seg))
		bs.next[seg] = top
		bs.filled[seg] = 0
		bs.bucketTop[b] = seg
		top = seg
	}
	dst := bs.segments[top][bs.filled[top]*bs.entryLen : (bs.filled[top]+1)*bs.entryLen]
	copy(dst, record)
	bs.filled[top]++
	bs.bucketCount[b]++
	return nil
}

// Count returns the number of records currently buffered in bucket b.
func (bs *BucketStore) Count(b int) int { return bs.bucketCount[b] }

// HeaviestBucket returns the index of the non-empty bucket holding the
// most records, and false if the store is empty (§4.4 step 3: "write out
// the heaviest non-empty bucket's stack").
func (bs *BucketStore) HeaviestBucket() (int, bool) {
	best, bestCount := -1, 0
	for b, c := range bs.bucketCount {
		if c > bestCount {
			best, bestCount = b, c
		}
	}
	return best, best != -1
}

// PopSegment removes and returns the top segment of bucket b's stack (its
// valid records, oldest-pushed-first within the segment), freeing the
// segment for reuse. It returns false if the bucket is empty.
func (bs *BucketStore) PopSegment(b int) ([]byte, bool) {
	top := bs.bucketTop[b]
	if top == -1 {
		return nil, false
	}
	n := bs.filled[top]
	out := make([]byte, n*bs.entryLen)
	copy(out, bs.segments[top][:n*bs.entryLen])

	bs.bucketTop[b] = bs.next[top]
	bs.bucketCount[b] -= n
	bs.free = append(bs.free, top)
	bs.occupied.Clear(uint(top))
	return out, true
}

// Empty reports whether every bucket is empty.
func (bs *BucketStore) Empty() bool {
	for _, c := range bs.bucketCount {
		if c > 0 {
			return false
		}
	}
	return true
}
