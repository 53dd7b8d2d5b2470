package plot

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/provespace/pospace/internal/bitio"
	"github.com/sirupsen/logrus"
)

// Options configures a plot run.
type Options struct {
	K            int
	Memo         []byte
	MemoryBudget int // 0 uses DefaultMemoryBudget
	Log          *logrus.Logger
}

// CreatePlot runs all four phases over seed and writes the resulting
// plot file to destPath. It builds the file under a UUID-suffixed
// temporary name next to destPath and renames it into place only once
// every region has been written and every header pointer back-patched,
// so a reader never observes a partially written destPath (§6, §7). If
// any step fails, the temporary file is left where it is and destPath is
// not created.
func CreatePlot(seed [32]byte, destPath string, opts Options) error {
	if !ValidateK(opts.K) {
		return fmt.Errorf("plot: k=%d out of range [%d,%d]", opts.K, MinK, MaxK)
	}
	memoryBudget := opts.MemoryBudget
	if memoryBudget <= 0 {
		memoryBudget = DefaultMemoryBudget
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithFields(logrus.Fields{"k": opts.K, "dest": destPath})

	tmpPath := destPath + "." + uuid.NewString() + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("plot: creating temp plot file: %w", err)
	}
	// A failed run leaves the partial temp file in place for inspection.
	defer f.Close()

	entry.Info("phase 1: forward propagation")
	tables, err := RunPhase1(seed, opts.K, memoryBudget)
	if err != nil {
		return fmt.Errorf("plot: phase1: %w", err)
	}

	entry.Info("phase 2: backpropagation")
	pruned, err := RunPhase2(tables)
	if err != nil {
		return fmt.Errorf("plot: phase2: %w", err)
	}

	entry.Info("phase 3: compression")
	compressed, err := RunPhase3(opts.K, pruned)
	if err != nil {
		return fmt.Errorf("plot: phase3: %w", err)
	}
	last := compressed[len(compressed)-1]

	entry.Info("phase 4: checkpoint tables")
	cp, err := RunPhase4(opts.K, pruned[NumTables-1], last.Pos)
	if err != nil {
		return fmt.Errorf("plot: phase4: %w", err)
	}

	var entryCounts [NumTables]uint64
	for i, tbl := range pruned {
		entryCounts[i] = uint64(len(tbl))
	}

	memoLen := len(opts.Memo)
	if _, err := WriteHeader(f, seed, byte(opts.K), opts.Memo, entryCounts); err != nil {
		return fmt.Errorf("plot: writing header: %w", err)
	}

	for _, ct := range compressed {
		if err := writeRegion(f, memoLen, PtrTable1+ct.TableIndex-1, ct.Parks); err != nil {
			return fmt.Errorf("plot: writing table %d parks: %w", ct.TableIndex+1, err)
		}
	}
	if err := writeRegion(f, memoLen, PtrTable7, cp.P7Parks); err != nil {
		return fmt.Errorf("plot: writing table 7 positions: %w", err)
	}
	if err := writeRegion(f, memoLen, PtrC1, [][]byte{packCheckpointValues(cp.C1, opts.K)}); err != nil {
		return fmt.Errorf("plot: writing C1: %w", err)
	}
	if err := writeRegion(f, memoLen, PtrC2, [][]byte{packCheckpointValues(cp.C2, opts.K)}); err != nil {
		return fmt.Errorf("plot: writing C2: %w", err)
	}
	if err := writeRegion(f, memoLen, PtrC3, cp.C3Parks); err != nil {
		return fmt.Errorf("plot: writing C3: %w", err)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("plot: syncing plot file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("plot: closing plot file: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("plot: renaming %s into place: %w", tmpPath, err)
	}
	entry.Info("plot complete")
	return nil
}

// writeRegion records the current write offset as the header's slot
// pointer, then appends chunks in order.
func writeRegion(f *os.File, memoLen, slot int, chunks [][]byte) error {
	offset, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return fmt.Errorf("finding current offset: %w", err)
	}
	if err := BackpatchPointer(f, memoLen, slot, uint64(offset)); err != nil {
		return err
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seeking back to offset %d: %w", offset, err)
	}
	for i, c := range chunks {
		if _, err := f.Write(c); err != nil {
			return fmt.Errorf("writing chunk %d: %w", i, err)
		}
	}
	return nil
}

// packCheckpointValues encodes each of values as its own byte-aligned
// k-bit field (§4.8's C1/C2 entry layout): unlike a park's stub region,
// consecutive entries are not bit-packed across byte boundaries.
func packCheckpointValues(values []uint64, k int) []byte {
	entrySize := bitio.ByteAlign(k) / 8
	out := make([]byte, 0, len(values)*entrySize)
	for _, v := range values {
		b, err := bitio.FromUint(v, k)
		if err != nil {
			panic(fmt.Sprintf("plot: packCheckpointValues: %v", err))
		}
		entry := make([]byte, entrySize)
		copy(entry, b.ToBytes())
		out = append(out, entry...)
	}
	return out
}
