package plot

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

// HeaderMagic opens every plot file; readers reject anything else outright.
const HeaderMagic = "Proof of Space Plot"

// FormatDescription identifies the on-disk layout version this package
// reads and writes. A reader that sees a different string refuses the
// file rather than guess at its layout.
const FormatDescription = "go-pospace-alpha-1.0"

// Header slot indices into Header.TablePointers (§6): the first seven
// slots are the byte offset each table's data begins at, and the last
// three are the C1/C2/C3 checkpoint tables' begin offsets.
const (
	PtrTable1 = iota
	PtrTable2
	PtrTable3
	PtrTable4
	PtrTable5
	PtrTable6
	PtrTable7
	PtrC1
	PtrC2
	PtrC3
	NumPointers
)

// Header is the fixed preamble of a plot file: an id, the space
// parameter, a format tag, an opaque memo, the per-table entry counts,
// and the table-begin pointer table that lets a prover seek directly to
// any table or checkpoint region without scanning the file.
//
// EntryCounts replaces the reference's all-zero sentinel record: a
// prover derives C1/C2's entry counts from EntryCounts[NumTables-1]
// (table 7's count) and the checkpoint intervals, rather than scanning
// for a terminator — the §9 open question on sentinel ambiguity at
// table 1's x=0 resolved in favor of this explicit form.
type Header struct {
	PlotID        [32]byte
	K             byte
	Memo          []byte
	EntryCounts   [NumTables]uint64
	TablePointers [NumPointers]uint64
}

func crc32cTable() *crc32.Table {
	return crc32.MakeTable(crc32.Castagnoli)
}

// headerPrefixSize returns the byte length of everything before the
// checksum field, given a memo of length memoLen.
func headerPrefixSize(memoLen int) int {
	return len(HeaderMagic) + 32 + 1 + 2 + len(FormatDescription) + 2 + memoLen + NumTables*8
}

// HeaderSize returns the total on-disk size of a header with the given
// memo length, including the trailing pointer table. Table data begins
// immediately after this many bytes.
func HeaderSize(memoLen int) int {
	return headerPrefixSize(memoLen) + 4 + NumPointers*8
}

// PointerOffset returns the file offset of table-pointer slot i, for
// back-patching it once that table or checkpoint region's true start is
// known.
func PointerOffset(memoLen, slot int) int64 {
	return int64(headerPrefixSize(memoLen) + 4 + slot*8)
}

// WriteHeader writes the header with every TablePointers slot zeroed —
// the plotter does not know any table's begin offset until the preceding
// table finishes — and returns the total header size in bytes, i.e. the
// offset table 1's data should begin at. entryCounts[i] is the number of
// entries table i+1 holds after backpropagation (§4.5).
func WriteHeader(w io.Writer, plotID [32]byte, k byte, memo []byte, entryCounts [NumTables]uint64) (int, error) {
	if len(memo) > 0xffff {
		return 0, fmt.Errorf("plot: memo of %d bytes exceeds the 16-bit length field", len(memo))
	}
	prefix := make([]byte, 0, headerPrefixSize(len(memo)))
	prefix = append(prefix, HeaderMagic...)
	prefix = append(prefix, plotID[:]...)
	prefix = append(prefix, k)
	prefix = appendUint16(prefix, uint16(len(FormatDescription)))
	prefix = append(prefix, FormatDescription...)
	prefix = appendUint16(prefix, uint16(len(memo)))
	prefix = append(prefix, memo...)
	for _, c := range entryCounts {
		prefix = appendUint64(prefix, c)
	}

	checksum := crc32.Checksum(prefix, crc32cTable())
	out := make([]byte, 0, len(prefix)+4+NumPointers*8)
	out = append(out, prefix...)
	out = appendUint32(out, checksum)
	out = append(out, make([]byte, NumPointers*8)...)

	n, err := w.Write(out)
	if err != nil {
		return 0, fmt.Errorf("plot: writing header: %w", err)
	}
	return n, nil
}

// BackpatchPointer overwrites table-pointer slot with offset, seeking
// w to its position in the already-written header.
func BackpatchPointer(w io.WriteSeeker, memoLen int, slot int, offset uint64) error {
	if slot < 0 || slot >= NumPointers {
		return fmt.Errorf("plot: pointer slot %d out of range", slot)
	}
	if _, err := w.Seek(PointerOffset(memoLen, slot), io.SeekStart); err != nil {
		return fmt.Errorf("plot: seeking to pointer slot %d: %w", slot, err)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], offset)
	if _, err := w.Write(buf[:]); err != nil {
		return fmt.Errorf("plot: writing pointer slot %d: %w", slot, err)
	}
	return nil
}

// ReadHeader parses a header from the start of r, validating the magic
// string, the format tag and the checksum over the fixed-layout prefix.
func ReadHeader(r io.Reader) (*Header, error) {
	magic := make([]byte, len(HeaderMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("plot: reading magic: %w", err)
	}
	if string(magic) != HeaderMagic {
		return nil, fmt.Errorf("%w: not a proof-of-space plot file (bad magic %q)", ErrCorruptPlot, magic)
	}

	h := &Header{}
	if _, err := io.ReadFull(r, h.PlotID[:]); err != nil {
		return nil, fmt.Errorf("plot: reading plot id: %w", err)
	}
	var kBuf [1]byte
	if _, err := io.ReadFull(r, kBuf[:]); err != nil {
		return nil, fmt.Errorf("plot: reading k: %w", err)
	}
	h.K = kBuf[0]

	formatLen, err := readUint16(r)
	if err != nil {
		return nil, fmt.Errorf("plot: reading format description length: %w", err)
	}
	format := make([]byte, formatLen)
	if _, err := io.ReadFull(r, format); err != nil {
		return nil, fmt.Errorf("plot: reading format description: %w", err)
	}
	if string(format) != FormatDescription {
		return nil, fmt.Errorf("%w: unsupported plot format %q (expected %q)", ErrCorruptPlot, format, FormatDescription)
	}

	memoLen, err := readUint16(r)
	if err != nil {
		return nil, fmt.Errorf("plot: reading memo length: %w", err)
	}
	h.Memo = make([]byte, memoLen)
	if _, err := io.ReadFull(r, h.Memo); err != nil {
		return nil, fmt.Errorf("plot: reading memo: %w", err)
	}

	prefix := make([]byte, 0, headerPrefixSize(int(memoLen)))
	prefix = append(prefix, magic...)
	prefix = append(prefix, h.PlotID[:]...)
	prefix = append(prefix, h.K)
	prefix = appendUint16(prefix, formatLen)
	prefix = append(prefix, format...)
	prefix = appendUint16(prefix, memoLen)
	prefix = append(prefix, h.Memo...)

	for i := 0; i < NumTables; i++ {
		c, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("plot: reading entry count %d: %w", i, err)
		}
		h.EntryCounts[i] = c
		prefix = appendUint64(prefix, c)
	}

	wantChecksum, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("plot: reading header checksum: %w", err)
	}
	if got := crc32.Checksum(prefix, crc32cTable()); got != wantChecksum {
		return nil, fmt.Errorf("%w: header checksum mismatch: got %x, want %x", ErrCorruptPlot, got, wantChecksum)
	}

	for i := 0; i < NumPointers; i++ {
		v, err := readUint64(r)
		if err != nil {
			return nil, fmt.Errorf("plot: reading table pointer %d: %w", i, err)
		}
		h.TablePointers[i] = v
	}
	return h, nil
}

func appendUint16(b []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	return append(b, buf[:]...)
}

func readUint16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}
