package prove

import (
	"crypto/sha256"

	"github.com/provespace/pospace/internal/bitio"
)

// quality computes the proof's quality string for one pair of table-1
// leaves: SHA-256(challenge ‖ x_small ‖ x_large), each x packed into k
// bits, smaller value first (§4.9 step 2).
func quality(challenge [32]byte, k int, xSmall, xLarge uint64) [32]byte {
	bits := bitio.NewBits()
	// Append never fails here: 2*k bits is well under NewBits' cap for
	// every supported k.
	_ = bits.Append(k, xSmall)
	_ = bits.Append(k, xLarge)

	input := make([]byte, 0, 32+len(bits.ToBytes()))
	input = append(input, challenge[:]...)
	input = append(input, bits.ToBytes()...)
	return sha256.Sum256(input)
}
