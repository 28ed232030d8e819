// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"testing"

	"github.com/hooklift/assert"
)

func TestCalculateRejectsInvalidOptions(t *testing.T) {
	buf := srand(1, 1024)

	_, err := Calculate(buf, SignatureOptions{BlockLen: 0, StrongLen: 8, Algorithm: BLAKE3})
	assert.Cond(t, err != nil, "zero block length should be rejected")

	_, err = Calculate(buf, SignatureOptions{BlockLen: 64, StrongLen: 0, Algorithm: BLAKE3})
	assert.Cond(t, err != nil, "zero strong length should be rejected")

	_, err = Calculate(buf, SignatureOptions{BlockLen: 64, StrongLen: blake3Size + 1, Algorithm: BLAKE3})
	assert.Cond(t, err != nil, "strong length beyond digest width should be rejected")

	_, err = Calculate(buf, SignatureOptions{BlockLen: 64, StrongLen: md4Size + 1, Algorithm: MD4})
	assert.Cond(t, err != nil, "strong length beyond MD4 digest width should be rejected")
}

func TestCalculateBlockCount(t *testing.T) {
	buf := srand(2, 1000)
	sig, err := Calculate(buf, SignatureOptions{BlockLen: 64, StrongLen: 16, Algorithm: BLAKE3})
	assert.Ok(t, err)
	assert.Equals(t, 16, sig.NumBlocks()) // ceil(1000/64) == 16, last block short
}

func TestCalculateEmptyInput(t *testing.T) {
	sig, err := Calculate(nil, SignatureOptions{BlockLen: 64, StrongLen: 16, Algorithm: BLAKE3})
	assert.Ok(t, err)
	assert.Equals(t, 0, sig.NumBlocks())
}

func TestSerializeParseRoundtrip(t *testing.T) {
	buf := srand(3, 4096)
	sig, err := Calculate(buf, SignatureOptions{BlockLen: 128, StrongLen: 12, Algorithm: BLAKE3})
	assert.Ok(t, err)

	wire := sig.Serialize(nil)
	parsed, err := ParseSignature(wire)
	assert.Ok(t, err)

	assert.Equals(t, sig.BlockLen(), parsed.BlockLen())
	assert.Equals(t, sig.StrongLen(), parsed.StrongLen())
	assert.Equals(t, sig.Algorithm(), parsed.Algorithm())
	assert.Equals(t, sig.NumBlocks(), parsed.NumBlocks())
	assert.Equals(t, sig.Bytes(), parsed.Bytes())
}

func TestParseSignatureRejectsGarbage(t *testing.T) {
	_, err := ParseSignature([]byte{0x00, 0x01, 0x02})
	assert.Cond(t, err != nil, "truncated header should be rejected")

	bogus := []byte{0xde, 0xad, 0xbe, 0xef, 0, 0, 0, 64, 0, 0, 0, 16}
	_, err = ParseSignature(bogus)
	assert.Cond(t, err != nil, "unknown magic should be rejected")
}

func TestCalculateMD4Signature(t *testing.T) {
	buf := srand(4, 2048)
	sig, err := Calculate(buf, SignatureOptions{BlockLen: 256, StrongLen: md4Size, Algorithm: MD4})
	assert.Ok(t, err)
	assert.Equals(t, MD4, sig.Algorithm())

	wire := sig.Serialize(nil)
	assert.Equals(t, uint32(sigMagicMD4), uint32(wire[0])<<24|uint32(wire[1])<<16|uint32(wire[2])<<8|uint32(wire[3]))
}
