// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hooklift/assert"
)

// TestOperandWidthRoundtrip checks that every width class encodes and
// decodes symmetrically at its boundary values.
func TestOperandWidthRoundtrip(t *testing.T) {
	cases := []uint64{0, 1, 0xff, 0x100, 0xffff, 0x10000, 0xffffffff, 0x100000000, ^uint64(0)}

	for _, v := range cases {
		w := widthClass(v)
		width := widthBytes[w]
		buf := make([]byte, width)
		putOperand(buf, width, v)
		got := getOperand(buf, width)
		if diff := cmp.Diff(v, got); diff != "" {
			t.Fatalf("operand roundtrip mismatch for %d (-want +got):\n%s", v, diff)
		}
	}
}

// TestEncodeLiteralHeaderUsesShortForm checks that lengths in [1,64] use the
// single-byte opcode form instead of a separate length operand.
func TestEncodeLiteralHeaderUsesShortForm(t *testing.T) {
	for n := uint64(1); n <= 64; n++ {
		buf := encodeLiteralHeader(nil, n)
		assert.Equals(t, 1, len(buf))
		assert.Equals(t, byte(opLiteral1+n-1), buf[0])
	}

	buf := encodeLiteralHeader(nil, 65)
	assert.Cond(t, len(buf) > 1, "lengths above 64 need a length operand")
	assert.Equals(t, byte(opLiteralN1), buf[0])
}

// TestEncodeCopyChoosesNarrowestWidths checks the opcode selects the
// narrowest width independently for offset and length.
func TestEncodeCopyChoosesNarrowestWidths(t *testing.T) {
	buf := encodeCopy(nil, 10, 0x10000)
	assert.Equals(t, byte(opCopyN1N1+0*4+2), buf[0])
	assert.Equals(t, 1+1+4, len(buf))
}
