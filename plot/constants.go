// Package plot implements the four-phase Chia-style proof-of-space
// plotter: forward propagation, backpropagation, compression and
// checkpoint-table construction, plus the on-disk plot file format that
// ties them together.
package plot

const (
	// MinK and MaxK bound the supported space parameter.
	MinK = 15
	MaxK = 59

	// ExtraBits (e) pads every y-value beyond the k-bit table domain so
	// that f-function outputs keep enough entropy to match across tables.
	ExtraBits = 5

	// B and C are the match-bucket group sizes (§3); BC is their
	// product, the size of one (left,right) bucket pair.
	B  = 60
	C  = 509
	BC = B * C

	// EntriesPerPark is the number of line-point entries packed into a
	// single park (§3).
	EntriesPerPark = 2048

	// StubMinusBits (s) is the width, in bits below k, of the
	// incompressible low-order "stub" kept raw inside a park.
	StubMinusBits = 3

	// CheckpointInterval1/2 are the C1/C2 sampling strides over the
	// f7-sorted final table (§4.8).
	CheckpointInterval1 = 10000
	CheckpointInterval2 = 10000

	// BatchSizeLog is log2 of an F1 counter-block batch. F1.EvalBatch
	// takes its batch length as an argument and RunPhase1 evaluates F1 one
	// x at a time, so neither reads this constant.
	BatchSizeLog = 8
	BatchSize    = 1 << BatchSizeLog

	// NumTables is the number of forward-propagation tables (T1..T7).
	NumTables = 7

	// MaxOffset is the hard limit on an 11-bit back-pointer offset
	// (§3 invariant 3, §4.5 BucketCrowded failure mode).
	MaxOffset = 1 << 11

	// SortBucketLog is log2 of the number of buckets used by one level
	// of the bucketed external sort (§4.4).
	SortBucketLog = 4
	SortBuckets   = 1 << SortBucketLog

	// ReadMinusWriteGap is how far (in T_{t-1} positions) the write
	// pointer of a streaming phase-2/3 co-iteration lags the read pointer.
	ReadMinusWriteGap = 2048
	// CachedPositionsWindow is the sliding boolean-window size a streaming
	// backpropagation uses to mark "used" positions. RunPhase2 and
	// RunPhase3 keep whole tables in memory and use neither window constant.
	CachedPositionsWindow = 8192

	// DefaultMemoryBudget bounds the external sort's in-RAM buffer.
	DefaultMemoryBudget = 2 << 30 // 2 GiB
)

// MetadataMultiplier returns mₜ, the metadata width multiplier (in units of
// k bits) for table t, per §3's multiplier table (m2=1..m7=2, m8=0).
func MetadataMultiplier(t int) int {
	switch t {
	case 1:
		return 0 // table 1 metadata is just x, handled specially
	case 2:
		return 1
	case 3:
		return 2
	case 4:
		return 4
	case 5:
		return 4
	case 6:
		return 3
	case 7:
		return 2
	case 8:
		return 0
	default:
		panic("plot: MetadataMultiplier: table index out of range")
	}
}

// ansRParam is the ANS "R" normalization parameter per table for park
// deltas (§4.7). Index 0 is table 1's park (T2's entries), ..., index 5
// is table 6's park (T7's entries). The internal/ans coder builds its own
// normalized distribution from the data, so it is not passed this value.
var ansRParam = [6]float64{4.7, 2.75, 2.75, 2.7, 2.6, 2.45}

// ansC3RParam is the R parameter for C3 delta records (§4.8); like
// ansRParam, it is not passed to the internal/ans coder.
const ansC3RParam = 1.0

// deltaBitsBudget approximates D(t), the average bits-per-delta budget
// used to size a park's maximum compressed-delta region (§4.7).
func deltaBitsBudget(t int) float64 {
	switch {
	case t == 1:
		return 5.6
	case t == 2:
		return 3.5 + 1 // table 2's park gets one extra bit of slack per entry
	default:
		return 3.5
	}
}

// ValidateK reports whether k is in the supported range.
func ValidateK(k int) bool {
	return k >= MinK && k <= MaxK
}
