// Package config validates the parameters a plotting or proving run is
// configured with before any I/O is attempted.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/provespace/pospace/plot"
)

// ErrInvalidParameter is the sentinel wrapped by every validation failure
// in this package (§7 Input validation).
var ErrInvalidParameter = errors.New("config: invalid parameter")

// SeedSize is the required length, in bytes, of a plot seed (plot id).
const SeedSize = 32

// Params collects everything a plot run needs: the space parameter, the
// seed it derives tables from, resource limits and file locations.
type Params struct {
	K             int
	Seed          [SeedSize]byte
	MemoryBudget  int64
	TempDir       string
	OutputPath    string
	Memo          []byte
}

// MaxMemoLen is the largest memo blob the header's 16-bit length prefix
// can record.
const MaxMemoLen = 1<<16 - 1

// Validate checks every field of p and returns a wrapped ErrInvalidParameter
// describing the first problem found.
func (p Params) Validate() error {
	if !plot.ValidateK(p.K) {
		return fmt.Errorf("%w: k=%d out of range [%d,%d]", ErrInvalidParameter, p.K, plot.MinK, plot.MaxK)
	}
	if p.MemoryBudget <= 0 {
		return fmt.Errorf("%w: memory budget must be positive, got %d", ErrInvalidParameter, p.MemoryBudget)
	}
	if len(p.Memo) > MaxMemoLen {
		return fmt.Errorf("%w: memo length %d exceeds maximum %d", ErrInvalidParameter, len(p.Memo), MaxMemoLen)
	}
	if p.OutputPath == "" {
		return fmt.Errorf("%w: output path must not be empty", ErrInvalidParameter)
	}
	if p.TempDir != "" {
		if info, err := os.Stat(p.TempDir); err != nil || !info.IsDir() {
			return fmt.Errorf("%w: temp dir %q is not an existing directory", ErrInvalidParameter, p.TempDir)
		}
	}
	return nil
}

// ParseSeed validates and copies a 32-byte seed from a slice, as required
// when a seed arrives from hex-decoded CLI input.
func ParseSeed(b []byte) ([SeedSize]byte, error) {
	var out [SeedSize]byte
	if len(b) != SeedSize {
		return out, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidParameter, SeedSize, len(b))
	}
	copy(out[:], b)
	return out, nil
}
