// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"bytes"
	"testing"

	"github.com/hooklift/assert"
	"github.com/pkg/profile"
)

// TestRoundtrip exercises the full Calculate -> NewIndex -> Diff -> Apply
// pipeline end to end across both strong hash algorithms and a mix of
// block sizes, the way a caller actually uses the package.
func TestRoundtrip(t *testing.T) {
	defer profile.Start().Stop()

	tests := []struct {
		desc      string
		base      []byte
		target    []byte
		blockLen  uint32
		strongLen uint32
		algorithm HashAlgorithm
	}{
		{
			"no prior cache, full literal transfer",
			nil,
			srand(30, (2*1024)*1024),
			6 * 1024,
			16,
			BLAKE3,
		},
		{
			"partial overlap, md4 signatures",
			srand(31, (2*1024)*1024),
			append(append([]byte(nil), srand(31, (2*1024)*1024)...), srand(32, 1024*1024)...),
			DefaultBlockSize,
			md4Size,
			MD4,
		},
		{
			"small file, tiny blocks",
			srand(33, 500),
			mutate(srand(33, 500), 200, 250, 0x7F),
			8,
			4,
			BLAKE3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			sig, err := Calculate(tt.base, SignatureOptions{
				BlockLen:  tt.blockLen,
				StrongLen: tt.strongLen,
				Algorithm: tt.algorithm,
			})
			assert.Ok(t, err)

			wire := sig.Serialize(nil)
			parsed, err := ParseSignature(wire)
			assert.Ok(t, err)
			idx := NewIndex(parsed)

			var delta bytes.Buffer
			assert.Ok(t, Diff(idx, tt.base, tt.target, &delta))

			var out bytes.Buffer
			assert.Ok(t, Apply(tt.base, bytes.NewReader(delta.Bytes()), &out))

			assert.Cond(t, bytes.Equal(tt.target, out.Bytes()), "reconstructed target should equal original")
		})
	}
}
