package plot

import "errors"

// ErrBucketCrowded is the fatal assertion raised when a phase-1 match
// pair's back-pointer offset would not fit the 11-bit field the on-disk
// format budgets for it (§4.5 edge behaviour, §7 Capacity exceeded).
var ErrBucketCrowded = errors.New("plot: bucket crowded, offset exceeds 11-bit limit")

// ErrCorruptPlot is the sentinel wrapped by every reader-side corruption
// check: bad magic/format string, a header checksum mismatch, a park
// whose size or delta-length field doesn't match what's expected (§7
// Corruption). It marks "this plot file is invalid", not a process
// fault, so callers can errors.Is their way past transient I/O errors.
var ErrCorruptPlot = errors.New("plot: corrupt plot file")
