//go:build !unix

package prove

import "os"

// preadAt falls back to the standard io.ReaderAt contract on platforms
// without a pread(2) syscall.
func preadAt(f *os.File, buf []byte, off int64) (int, error) {
	return f.ReadAt(buf, off)
}
