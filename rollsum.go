// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

// rollsum is the 32-bit weak checksum used to probe the signature table
// while scanning the target. It is the librsync rolling checksum: a
// 16-bit running byte sum (a) and a 16-bit running weighted sum (b),
// packed as weak = (b << 16) | a.
//
// Unlike the adler-32-flavored approximation some rsync reimplementations
// settle for, the weights here run from the window length down to 1 as
// defined by the rsync thesis, and the incremental slide must reproduce
// that exact value after any number of rolls or the search and signature
// halves of this package will silently disagree with each other.
type rollsum struct {
	a, b uint32
	wlen uint32
}

// newRollsum computes the rolling checksum state from scratch over window.
func newRollsum(window []byte) rollsum {
	var a, b uint32
	n := uint32(len(window))
	for i, x := range window {
		a += uint32(x)
		b += (n - uint32(i)) * uint32(x)
	}
	return rollsum{a: a & 0xffff, b: b & 0xffff, wlen: n}
}

// value returns the packed 32-bit weak checksum.
func (r rollsum) value() uint32 {
	return (r.b << 16) | r.a
}

// roll slides the window forward by one byte: out leaves on the left, in
// enters on the right. The window length is unchanged.
//
// a' = (a - out + in) mod 2^16
// b' = (b - wlen*out + a') mod 2^16
//
// Order matters: b' is computed from the *new* a', not the old one, and
// out must be subtracted before in's effect on b is folded in via a'.
func (r rollsum) roll(out, in byte) rollsum {
	a := (r.a - uint32(out) + uint32(in)) & 0xffff
	b := (r.b - r.wlen*uint32(out) + a) & 0xffff
	return rollsum{a: a, b: b, wlen: r.wlen}
}

// rollingHash computes the weak checksum of block directly, equivalent to
// newRollsum(block).value(). It is used wherever a fresh, non-incremental
// computation is cheaper than carrying rolling state around, such as
// signature construction.
func rollingHash(block []byte) uint32 {
	return newRollsum(block).value()
}
