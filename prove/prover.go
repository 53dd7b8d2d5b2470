// Package prove implements the plot-file reader: given a challenge, it
// locates matching proofs of space and extracts their quality strings or
// full 64-leaf proofs, walking the compressed park chain a plot file's
// phases 3 and 4 produced (§4.9).
package prove

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/provespace/pospace/internal/ans"
	"github.com/provespace/pospace/internal/bitio"
	"github.com/provespace/pospace/plot"
)

// ErrNoProof is returned by FullProof when a challenge has no matching
// proof at all (§7: a zero-proof challenge is normal, not an error, so
// QualitiesForChallenge just returns an empty slice; ErrNoProof only
// marks the case where a caller asks FullProof for one anyway).
var ErrNoProof = errors.New("prove: no proof for challenge")

// Prover reads proofs of space out of a single plot file. A Prover holds
// one open file handle and C2 loaded fully into memory; all other
// reads are positional (pread-style) so a Prover is safe to drive many
// challenges against without re-opening the file.
type Prover struct {
	f      *os.File
	header *plot.Header
	k      int
	c2     []uint64
	coder  *ans.Coder
}

// Open reads a plot file's header and loads its C2 checkpoint table into
// memory (§4.9 step 1).
func Open(path string) (*Prover, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("prove: opening %s: %w", path, err)
	}
	h, err := plot.ReadHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("prove: reading header: %w", err)
	}
	p := &Prover{f: f, header: h, k: int(h.K), coder: ans.NewCoder()}

	n := h.EntryCounts[plot.NumTables-1]
	c2n := int(plot.C2Count(n))
	if c2n > 0 {
		entrySize := bitio.ByteAlign(p.k) / 8
		buf, err := p.readAt(int64(h.TablePointers[plot.PtrC2]), c2n*entrySize)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("prove: loading C2: %w", err)
		}
		p.c2 = make([]uint64, c2n)
		for i := range p.c2 {
			p.c2[i] = bitio.SliceIntFromBytes(buf[i*entrySize:], 0, p.k)
		}
	}
	return p, nil
}

// Close releases the underlying file handle.
func (p *Prover) Close() error {
	return p.f.Close()
}

// K returns the plot's space parameter.
func (p *Prover) K() int { return p.k }

func (p *Prover) readAt(off int64, size int) ([]byte, error) {
	buf := make([]byte, size)
	read := 0
	for read < size {
		n, err := preadAt(p.f, buf[read:], off+int64(read))
		read += n
		if err != nil {
			if err == io.EOF && read == size {
				break
			}
			return nil, err
		}
		if n == 0 {
			return nil, io.ErrUnexpectedEOF
		}
	}
	return buf, nil
}

// readLinePoint decodes the park holding position within the (tableIndex,
// tableIndex+1) pair's compressed table and returns the two line-point
// coordinates, larger first. tableIndex 1 is the one pair whose
// coordinates are table 1's actual x values rather than further
// positions (plot/phase3.go's table-1 special case).
func (p *Prover) readLinePoint(tableIndex int, position uint64) (larger, smaller uint64, err error) {
	if tableIndex < 1 || tableIndex > plot.NumTables-1 {
		return 0, 0, fmt.Errorf("prove: table index %d out of range", tableIndex)
	}
	count := p.header.EntryCounts[tableIndex]
	if position >= count {
		return 0, 0, fmt.Errorf("%w: position %d out of range for table %d (%d entries)", plot.ErrCorruptPlot, position, tableIndex, count)
	}

	parkSize := plot.ParkSize(p.k, tableIndex)
	parkIndex := position / plot.EntriesPerPark
	entriesInPark := plot.EntriesPerPark
	if remain := count - parkIndex*plot.EntriesPerPark; remain < uint64(entriesInPark) {
		entriesInPark = int(remain)
	}

	slot := plot.PtrTable1 + tableIndex - 1
	off := int64(p.header.TablePointers[slot]) + int64(parkIndex)*int64(parkSize)
	data, err := p.readAt(off, parkSize)
	if err != nil {
		return 0, 0, fmt.Errorf("prove: reading table %d park %d: %w", tableIndex, parkIndex, err)
	}
	points, err := plot.DecodePark(p.coder, p.k, tableIndex, entriesInPark, data)
	if err != nil {
		return 0, 0, fmt.Errorf("prove: decoding table %d park %d: %w", tableIndex, parkIndex, err)
	}
	idx := position % plot.EntriesPerPark
	larger, smaller = plot.LinePointToSquare(points[idx])
	return larger, smaller, nil
}

// readP7 returns table 7 row position's new_pos6 value.
func (p *Prover) readP7(position uint64) (uint64, error) {
	entryBits := p.k + 1
	parkBits := plot.EntriesPerPark * entryBits
	parkSize := bitio.ByteAlign(parkBits) / 8
	parkIndex := position / plot.EntriesPerPark

	off := int64(p.header.TablePointers[plot.PtrTable7]) + int64(parkIndex)*int64(parkSize)
	data, err := p.readAt(off, parkSize)
	if err != nil {
		return 0, fmt.Errorf("prove: reading P7 park %d: %w", parkIndex, err)
	}
	idx := int(position % plot.EntriesPerPark)
	return bitio.SliceIntFromBytes(data, idx*entryBits, entryBits), nil
}

func (p *Prover) readC1(index int) (uint64, error) {
	entrySize := bitio.ByteAlign(p.k) / 8
	off := int64(p.header.TablePointers[plot.PtrC1]) + int64(index)*int64(entrySize)
	data, err := p.readAt(off, entrySize)
	if err != nil {
		return 0, fmt.Errorf("prove: reading C1 entry %d: %w", index, err)
	}
	return bitio.SliceIntFromBytes(data, 0, p.k), nil
}

// c3GroupSize returns how many delta symbols C3 park i holds: the
// entries between C1 checkpoint i and the next (exclusive), minus the
// checkpoint entry itself. The final group may be short or empty when
// the table's entry count doesn't land on a full CheckpointInterval1
// boundary (§4.8).
func c3GroupSize(i int, n uint64) int {
	start := uint64(i) * plot.CheckpointInterval1
	if start >= n {
		return 0
	}
	next := start + plot.CheckpointInterval1
	if next > n {
		next = n
	}
	return int(next - start - 1)
}

func decodeC3Deltas(coder *ans.Coder, data []byte, count int) ([]byte, error) {
	if count <= 0 {
		return nil, nil
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("%w: C3 record too short", plot.ErrCorruptPlot)
	}
	size := int(binary.BigEndian.Uint16(data[:2]))
	if 2+size > len(data) {
		return nil, fmt.Errorf("%w: C3 encoded length %d overruns the record", plot.ErrCorruptPlot, size)
	}
	return coder.Decode(data[2:2+size], count)
}

// getP7Positions walks C1 checkpoint c1Index's f7 stream (the checkpoint
// value itself plus its C3-coded deltas), returning every table-7
// position whose f7 equals target.
func (p *Prover) getP7Positions(c1Index int, target uint64) ([]uint64, error) {
	n := p.header.EntryCounts[plot.NumTables-1]
	start := uint64(c1Index) * plot.CheckpointInterval1
	if start >= n {
		return nil, nil
	}

	curr, err := p.readC1(c1Index)
	if err != nil {
		return nil, err
	}
	var positions []uint64
	if curr == target {
		positions = append(positions, start)
	}
	if curr > target {
		return positions, nil
	}

	groupLen := c3GroupSize(c1Index, n)
	if groupLen <= 0 {
		return positions, nil
	}
	c3Size := plot.CalculateC3Size(p.k)
	off := int64(p.header.TablePointers[plot.PtrC3]) + int64(c1Index)*int64(c3Size)
	raw, err := p.readAt(off, c3Size)
	if err != nil {
		return nil, fmt.Errorf("prove: reading C3 park %d: %w", c1Index, err)
	}
	deltas, err := decodeC3Deltas(p.coder, raw, groupLen)
	if err != nil {
		return nil, fmt.Errorf("prove: decoding C3 park %d: %w", c1Index, err)
	}
	for i, d := range deltas {
		curr += uint64(d)
		if curr == target {
			positions = append(positions, start+1+uint64(i))
		}
		if curr > target {
			break
		}
	}
	return positions, nil
}

// getP7Entries finds every new_pos6 value whose f7 equals target,
// binary-searching C2 for the bounding C1 region and decoding the
// relevant C3 park(s) (§4.9 step 2; the double-entry boundary case is
// the §9 open question, resolved by also decoding the previous C1
// group's park whenever the candidate group is not the first one).
func (p *Prover) getP7Entries(target uint64) ([]uint64, error) {
	if len(p.c2) == 0 {
		return nil, nil
	}
	c2Index := sort.Search(len(p.c2), func(i int) bool { return p.c2[i] > target }) - 1
	if c2Index < 0 {
		return nil, nil
	}

	c1Start := c2Index * plot.CheckpointInterval2
	c1Count := int(plot.C1Count(p.header.EntryCounts[plot.NumTables-1]))
	curr := c1Start
	for curr+1 < c1Count {
		next, err := p.readC1(curr + 1)
		if err != nil {
			return nil, err
		}
		if next > target {
			break
		}
		curr++
	}

	var positions []uint64
	if curr > 0 {
		prevPositions, err := p.getP7Positions(curr-1, target)
		if err != nil {
			return nil, err
		}
		// Only worth decoding the predecessor when the target could
		// plausibly straddle the boundary; cheap to just check both.
		positions = append(positions, prevPositions...)
	}
	currPositions, err := p.getP7Positions(curr, target)
	if err != nil {
		return nil, err
	}
	positions = append(positions, currPositions...)

	if len(positions) == 0 {
		return nil, nil
	}
	newPos6 := make([]uint64, len(positions))
	for i, pos := range positions {
		v, err := p.readP7(pos)
		if err != nil {
			return nil, err
		}
		newPos6[i] = v
	}
	return newPos6, nil
}

// getInputs recursively walks the compressed park chain from depth down
// to table 1, returning 2^depth leaf x-values in the order GetInputs's
// reference recursion builds them: at every level, the smaller-valued
// parent's subtree comes first.
func (p *Prover) getInputs(position uint64, depth int) ([]uint64, error) {
	larger, smaller, err := p.readLinePoint(depth, position)
	if err != nil {
		return nil, err
	}
	if depth == 1 {
		return []uint64{smaller, larger}, nil
	}
	left, err := p.getInputs(smaller, depth-1)
	if err != nil {
		return nil, err
	}
	right, err := p.getInputs(larger, depth-1)
	if err != nil {
		return nil, err
	}
	return append(left, right...), nil
}

// QualitiesForChallenge returns the quality string for every proof
// matching challenge, or (nil, nil) if none match — no match is the
// normal case, not an error (§7, §9 open question).
func (p *Prover) QualitiesForChallenge(challenge [32]byte) ([][32]byte, error) {
	f7 := bitio.SliceIntFromBytes(challenge[:], 0, p.k)
	pos6s, err := p.getP7Entries(f7)
	if err != nil {
		return nil, err
	}
	last5 := uint64(challenge[31] & 0x1f)

	out := make([][32]byte, 0, len(pos6s))
	for _, pos6 := range pos6s {
		q, err := p.qualityForPos6(challenge, pos6, last5)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func (p *Prover) qualityForPos6(challenge [32]byte, pos6 uint64, last5 uint64) ([32]byte, error) {
	position := pos6
	for t := plot.NumTables - 1; t >= 2; t-- {
		larger, smaller, err := p.readLinePoint(t, position)
		if err != nil {
			return [32]byte{}, err
		}
		if (last5>>uint(t-2))&1 == 1 {
			position = larger
		} else {
			position = smaller
		}
	}
	xLarge, xSmall, err := p.readLinePoint(1, position)
	if err != nil {
		return [32]byte{}, err
	}
	return Quality(challenge, p.k, xSmall, xLarge), nil
}

// Quality computes the SHA-256 quality string for a pair of leaf x
// values, small first then large (§4.9 step 2, §8 property 4).
func Quality(challenge [32]byte, k int, xSmall, xLarge uint64) [32]byte {
	return quality(challenge, k, xSmall, xLarge)
}

// FullProof returns the 64 leaves of proof index among the proofs
// matching challenge, reordered into the canonical proof ordering
// ReorderProof produces so the verifier's forward walk can check them
// (§4.9 step 3).
func (p *Prover) FullProof(challenge [32]byte, index int) ([]byte, error) {
	f7 := bitio.SliceIntFromBytes(challenge[:], 0, p.k)
	pos6s, err := p.getP7Entries(f7)
	if err != nil {
		return nil, err
	}
	if len(pos6s) == 0 {
		return nil, fmt.Errorf("%w: challenge %x", ErrNoProof, challenge)
	}
	if index < 0 || index >= len(pos6s) {
		return nil, fmt.Errorf("prove: proof index %d out of range (%d proofs)", index, len(pos6s))
	}

	leaves, err := p.getInputs(pos6s[index], plot.NumTables-1)
	if err != nil {
		return nil, err
	}
	ordered, err := reorderProof(p.header.PlotID, p.k, leaves)
	if err != nil {
		return nil, err
	}

	bits := bitio.NewParkBits()
	for _, x := range ordered {
		if err := bits.Append(p.k, x); err != nil {
			return nil, fmt.Errorf("prove: packing proof: %w", err)
		}
	}
	return bits.ToBytes(), nil
}
