// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import "encoding/binary"

// Index is a lookup structure built from a Signature: weak hash -> the
// ascending list of block record indices sharing that hash. It is built in
// one pass and is read-only afterward, so a single Index may be shared by
// any number of concurrent Diff/DiffParallel calls.
//
// Index borrows its record bytes directly from the Signature it was built
// from; the Signature (or the byte slice backing a parsed one) must
// outlive the Index.
type Index struct {
	blockLen  uint32
	strongLen uint32
	algorithm HashAlgorithm
	numBlocks int
	// records is the signature's record payload (everything after the
	// 12-byte header), sliced directly from the signature's storage.
	records []byte
	// table maps weak hash to record indices, in ascending order (the
	// natural order of insertion, since blocks are scanned in order).
	table map[uint32][]int32
	// excludeLast is true when the final record corresponds to a block
	// shorter than blockLen, per Signature.shortFinalBlock. Such a
	// record can never be the target of a full-length match and is
	// skipped as a search candidate.
	excludeLast bool
}

// NewIndex builds an Index from sig.
func NewIndex(sig *Signature) *Index {
	recordSize := 4 + int(sig.strongLen)
	records := sig.raw[signatureHeaderSize:]
	numBlocks := len(records) / recordSize

	table := make(map[uint32][]int32, numBlocks)
	for i := 0; i < numBlocks; i++ {
		rec := records[i*recordSize : (i+1)*recordSize]
		weak := binary.BigEndian.Uint32(rec[0:4])
		table[weak] = append(table[weak], int32(i))
	}

	return &Index{
		blockLen:    sig.blockLen,
		strongLen:   sig.strongLen,
		algorithm:   sig.algorithm,
		numBlocks:   numBlocks,
		records:     records,
		table:       table,
		excludeLast: sig.shortFinalBlock,
	}
}

// BlockLen returns the block length used to build the signature.
func (x *Index) BlockLen() uint32 { return x.blockLen }

// StrongLen returns the strong hash truncation length.
func (x *Index) StrongLen() uint32 { return x.strongLen }

// Algorithm returns the strong hash algorithm.
func (x *Index) Algorithm() HashAlgorithm { return x.algorithm }

// NumBlocks returns the number of indexed block records.
func (x *Index) NumBlocks() int { return x.numBlocks }

// Lookup returns the record indices sharing weak, in ascending order. The
// returned slice is owned by the Index and must not be modified.
func (x *Index) Lookup(weak uint32) []int32 {
	return x.table[weak]
}

// StrongHashAt returns the stored strong hash bytes for record i.
func (x *Index) StrongHashAt(i int32) []byte {
	recordSize := 4 + int(x.strongLen)
	off := int(i)*recordSize + 4
	return x.records[off : off+int(x.strongLen)]
}

// BlockSpan returns the (offset, length) in A that record i covers. The
// length is always the configured block length, including for a short
// final block; the shorter actual length of that block is not reported.
func (x *Index) BlockSpan(i int32) (offset, length int64) {
	offset = int64(i) * int64(x.blockLen)
	length = int64(x.blockLen)
	return offset, length
}

// candidateExcluded reports whether record i must be skipped as a match
// candidate because it is the signature's short final block.
func (x *Index) candidateExcluded(i int32) bool {
	return x.excludeLast && int(i) == x.numBlocks-1
}
