// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rsync implements the rsync differential transfer algorithm
// entirely in memory. Given a reference byte sequence A and a target byte
// sequence B, it builds a signature of A, searches B against that signature
// to produce a delta, and can apply that delta back against A to
// reconstruct B.
//
// The wire format is compatible with the classic librsync byte stream: MD4
// signatures and deltas produced by this package can be consumed by, or
// consume, signatures and deltas from librsync-based tools. BLAKE3 is
// offered as a faster, cryptographically stronger alternative and uses a
// dedicated, non-librsync magic number.
//
// The package does no I/O of its own beyond the io.Writer sinks callers
// provide, keeps no global state, and performs no logging or retries; every
// failure is returned to the caller as one of the error kinds in errors.go.
package rsync

// DefaultBlockSize is a reasonable block length to pass in SignatureOptions
// when the caller has no stronger opinion.
const DefaultBlockSize = 6 * 1024

// MaxBlockLen is the largest block length the wire format can express.
const MaxBlockLen = 1<<31 - 1

// maxLiteralChunk bounds the size of a single LITERAL command's payload.
// Longer literal runs are split into consecutive LITERAL commands so that a
// single command never claims to carry more than this many bytes.
const maxLiteralChunk = 1 << 31
