package rsync

import (
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/md4"
)

// HashAlgorithm selects the strong, collision-resistant hash used to verify
// weak-hash candidates and to disambiguate records that share a weak hash.
type HashAlgorithm int

const (
	// MD4 is the legacy librsync strong hash. It is cryptographically
	// broken but kept for wire compatibility with existing librsync
	// signatures and deltas.
	MD4 HashAlgorithm = iota
	// BLAKE3 is a modern, fast, cryptographically secure hash. Signatures
	// built with it use a magic number specific to this library.
	BLAKE3
)

// Strong hash widths, in bytes, for the two supported algorithms.
const (
	md4Size    = 16
	blake3Size = 32
)

// maxStrongLen reports the widest truncation length the algorithm permits.
func (h HashAlgorithm) maxStrongLen() int {
	switch h {
	case MD4:
		return md4Size
	case BLAKE3:
		return blake3Size
	default:
		return 0
	}
}

// validStrongLen reports whether s is an acceptable truncation length for
// the algorithm: 1 <= s <= the algorithm's full digest width.
func (h HashAlgorithm) validStrongLen(s int) bool {
	return s >= 1 && s <= h.maxStrongLen()
}

// strongHash computes the full-width strong digest of block for algorithm
// h. Truncation to the signature's configured length happens at the call
// site.
func strongHash(h HashAlgorithm, block []byte) []byte {
	switch h {
	case MD4:
		d := md4.New()
		_, _ = d.Write(block)
		return d.Sum(nil)
	case BLAKE3:
		d := blake3.New()
		_, _ = d.Write(block)
		return d.Sum(nil)
	default:
		panic("rsync: unknown hash algorithm")
	}
}
