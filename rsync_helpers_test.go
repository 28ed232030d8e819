// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import "math/rand"

var alpha = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789\n"

// srand generates a deterministic pseudo-random byte string of fixed size,
// seeded so tests are reproducible.
func srand(seed int64, size int) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = alpha[r.Intn(len(alpha))]
	}
	return buf
}

// mutate returns a copy of buf with the half-open span [start, end) replaced
// by repeated occurrences of fill.
func mutate(buf []byte, start, end int, fill byte) []byte {
	out := append([]byte(nil), buf...)
	for i := start; i < end; i++ {
		out[i] = fill
	}
	return out
}
