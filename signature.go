// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// signatureHeaderSize is magic + block length + strong hash length, each a
// 4-byte big-endian field.
const signatureHeaderSize = 4 + 4 + 4

// SignatureOptions configures how a Signature is built from a reference
// sequence.
type SignatureOptions struct {
	// BlockLen is the granularity of the signature. Smaller blocks yield
	// larger, more precise signatures. Must be at least 1.
	BlockLen uint32
	// StrongLen is how many bytes of the strong hash to keep per block.
	// Must be between 1 and the chosen Algorithm's full digest width.
	StrongLen uint32
	// Algorithm selects the strong hash.
	Algorithm HashAlgorithm
}

// Signature is the block-indexed fingerprint of a reference sequence A. It
// is immutable once built: Calculate and ParseSignature are the only
// constructors, and neither mutates its input afterward.
type Signature struct {
	algorithm HashAlgorithm
	blockLen  uint32
	strongLen uint32
	// raw is the full wire encoding: header followed by one (weak,
	// strong) record per block. Index borrows directly from this slice,
	// so callers must not mutate bytes previously handed to ParseSignature
	// or obtained from Bytes.
	raw []byte
	// shortFinalBlock is true when the last block of A (if any) is
	// strictly shorter than blockLen. It is only known for signatures
	// built directly by Calculate in this process; it is not carried on
	// the wire, so signatures obtained via ParseSignature conservatively
	// report false (see Index, and DESIGN.md).
	shortFinalBlock bool
}

// Calculate computes a signature for buf using the given options.
//
// Calculate returns ErrInvalidOptions if BlockLen is zero or if StrongLen
// is out of range for the chosen Algorithm.
func Calculate(buf []byte, opts SignatureOptions) (*Signature, error) {
	if opts.BlockLen == 0 || opts.BlockLen > MaxBlockLen {
		return nil, errors.Wrap(ErrInvalidOptions, "block length must be in [1, MaxBlockLen]")
	}
	if !opts.Algorithm.validStrongLen(int(opts.StrongLen)) {
		return nil, errors.Wrapf(ErrInvalidOptions, "strong hash length %d out of range for algorithm", opts.StrongLen)
	}

	blockLen := int(opts.BlockLen)
	numBlocks := 0
	if len(buf) > 0 {
		numBlocks = (len(buf) + blockLen - 1) / blockLen
	}

	recordSize := 4 + int(opts.StrongLen)
	raw := make([]byte, signatureHeaderSize, signatureHeaderSize+numBlocks*recordSize)
	magic := sigMagicMD4
	if opts.Algorithm == BLAKE3 {
		magic = sigMagicBlake3
	}
	binary.BigEndian.PutUint32(raw[0:4], magic)
	binary.BigEndian.PutUint32(raw[4:8], opts.BlockLen)
	binary.BigEndian.PutUint32(raw[8:12], opts.StrongLen)

	shortFinal := false
	for i := 0; i < numBlocks; i++ {
		start := i * blockLen
		end := start + blockLen
		if end > len(buf) {
			end = len(buf)
			shortFinal = end-start < blockLen
		}
		block := buf[start:end]

		weak := rollingHash(block)
		strong := strongHash(opts.Algorithm, block)[:opts.StrongLen]

		var weakBuf [4]byte
		binary.BigEndian.PutUint32(weakBuf[:], weak)
		raw = append(raw, weakBuf[:]...)
		raw = append(raw, strong...)
	}

	return &Signature{
		algorithm:       opts.Algorithm,
		blockLen:        opts.BlockLen,
		strongLen:       opts.StrongLen,
		raw:             raw,
		shortFinalBlock: shortFinal,
	}, nil
}

// ParseSignature decodes a signature previously produced by Serialize (or
// by a compatible librsync tool, for the MD4 magic).
//
// ParseSignature returns ErrInvalidSignature if the header is truncated,
// the magic is unrecognized, or the payload length is not an exact
// multiple of the per-block record size.
func ParseSignature(data []byte) (*Signature, error) {
	if len(data) < signatureHeaderSize {
		return nil, errors.Wrap(ErrInvalidSignature, "truncated header")
	}
	magic := binary.BigEndian.Uint32(data[0:4])

	var algo HashAlgorithm
	switch magic {
	case sigMagicMD4:
		algo = MD4
	case sigMagicBlake3:
		algo = BLAKE3
	default:
		return nil, errors.Wrapf(ErrInvalidSignature, "unknown magic 0x%08x", magic)
	}

	blockLen := binary.BigEndian.Uint32(data[4:8])
	strongLen := binary.BigEndian.Uint32(data[8:12])
	if blockLen == 0 {
		return nil, errors.Wrap(ErrInvalidSignature, "zero block length")
	}
	if !algo.validStrongLen(int(strongLen)) {
		return nil, errors.Wrap(ErrInvalidSignature, "strong hash length out of range")
	}

	recordSize := 4 + int(strongLen)
	payload := len(data) - signatureHeaderSize
	if payload%recordSize != 0 {
		return nil, errors.Wrap(ErrInvalidSignature, "record count inconsistent with payload length")
	}

	return &Signature{
		algorithm: algo,
		blockLen:  blockLen,
		strongLen: strongLen,
		raw:       data,
		// shortFinalBlock is unknowable from the wire bytes alone; see
		// the field comment and DESIGN.md.
		shortFinalBlock: false,
	}, nil
}

// Serialize writes the wire encoding of the signature to buf and returns
// the result. It never fails; callers writing straight to an io.Writer can
// use Bytes with w.Write instead.
func (s *Signature) Serialize(buf []byte) []byte {
	return append(buf, s.raw...)
}

// Bytes returns the serialized signature. The returned slice must not be
// modified: Index borrows from it.
func (s *Signature) Bytes() []byte {
	return s.raw
}

// BlockLen returns the configured block length.
func (s *Signature) BlockLen() uint32 { return s.blockLen }

// StrongLen returns the configured strong hash truncation length.
func (s *Signature) StrongLen() uint32 { return s.strongLen }

// Algorithm returns the strong hash algorithm the signature was built with.
func (s *Signature) Algorithm() HashAlgorithm { return s.algorithm }

// NumBlocks returns the number of block records in the signature.
func (s *Signature) NumBlocks() int {
	recordSize := 4 + int(s.strongLen)
	return (len(s.raw) - signatureHeaderSize) / recordSize
}
