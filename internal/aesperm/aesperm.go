// Package aesperm provides the keyed block-permutation primitives the
// F-function family is built from (§4.2). The real plotter treats "AES-NI,
// possibly run for a reduced number of rounds" as an external black-box
// collaborator (§1 Out of scope); this package supplies that collaborator
// using the standard library's crypto/aes, which already carries
// hardware-accelerated (AES-NI) code paths on amd64/arm64 — exactly the
// primitive the spec asks to be treated as opaque.
package aesperm

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const blockBytes = 16

// DeriveKey builds the AES key for table t (1-indexed) from the 32-byte
// plot seed: prepend the table index byte, then truncate to keyLen bytes
// (32 for the table-1 AES-256 key, 16 for the tables 2-7 AES-128 key).
func DeriveKey(seed [32]byte, t byte, keyLen int) []byte {
	buf := make([]byte, 1+len(seed))
	buf[0] = t
	copy(buf[1:], seed[:])
	return buf[:keyLen]
}

// Permuter is a single-block (16-byte) keyed permutation — the abstraction
// point for the black-box AES-NI collaborator.
type Permuter interface {
	// Permute encrypts exactly one 16-byte block.
	Permute(dst, src []byte)
}

type blockPermuter struct {
	block cipher.Block
}

func (p blockPermuter) Permute(dst, src []byte) {
	p.block.Encrypt(dst, src)
}

// NewTable1Permuter returns the 14-round AES-256 permutation F1 is keyed
// with.
func NewTable1Permuter(seed [32]byte) (Permuter, error) {
	key := DeriveKey(seed, 1, 32)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesperm: table 1 cipher: %w", err)
	}
	return blockPermuter{block: block}, nil
}

// NewTableMixPermuter returns the keyed mixing permutation Fx (t in [2,7])
// uses. The spec's reduced 2-round AES-128 variant is the out-of-scope
// AES-NI collaborator; standard 10-round AES-128 stands in for it here.
func NewTableMixPermuter(seed [32]byte, t byte) (Permuter, error) {
	key := DeriveKey(seed, t, 16)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesperm: table %d cipher: %w", t, err)
	}
	return blockPermuter{block: block}, nil
}

// CBCChain runs a CBC-style chain of single-block permutations over
// 128-bit-aligned chunks: out_0 = P(chunk_0), out_i = P(out_{i-1} xor
// chunk_i). It returns the final chunk's output block, which is what every
// one of the spec's block-count cases (1..4 blocks) ultimately reduces to
// once §4.2's per-case wiring is collapsed to a uniform chain.
func CBCChain(p Permuter, chunks [][blockBytes]byte) [blockBytes]byte {
	var prev [blockBytes]byte
	var out [blockBytes]byte
	for i, chunk := range chunks {
		var in [blockBytes]byte
		if i == 0 {
			in = chunk
		} else {
			for j := range in {
				in[j] = prev[j] ^ chunk[j]
			}
		}
		p.Permute(out[:], in[:])
		prev = out
	}
	return out
}

// EncryptCounterBlock encrypts the big-endian 128-bit representation of
// index, as F1's batch-amortized counter mode requires.
func EncryptCounterBlock(p Permuter, index uint64) [blockBytes]byte {
	var ctr, out [blockBytes]byte
	// index fits the low 64 bits of a 128-bit big-endian counter.
	for i := 0; i < 8; i++ {
		ctr[15-i] = byte(index >> uint(8*i))
	}
	p.Permute(out[:], ctr[:])
	return out
}
