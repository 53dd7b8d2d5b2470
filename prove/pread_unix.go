//go:build unix

package prove

import (
	"os"

	"golang.org/x/sys/unix"
)

// preadAt issues a single positional read via the unix pread(2) syscall,
// avoiding the shared file-offset mutation a Seek+Read pair would need
// (the prover reads many disjoint regions of the same file).
func preadAt(f *os.File, buf []byte, off int64) (int, error) {
	return unix.Pread(int(f.Fd()), buf, off)
}
