// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"bytes"
	"encoding/binary"
	"io"
)

// deltaCmd is an in-memory representation of one delta command, used
// inside DiffParallel so that per-chunk output can be inspected and
// stitched together before it is serialized to the wire format. Diff
// serializes directly and never builds these.
type deltaCmd struct {
	isCopy  bool
	literal []byte // valid when !isCopy; literals merged by reconcileCmds are private copies, those taken from reseed alias target
	offset  uint64 // valid when isCopy
	length  uint64 // valid when isCopy
}

// deltaSink receives the command stream a search produces, in order.
type deltaSink interface {
	writeLiteral(data []byte) error
	writeCopy(offset, length uint64) error
}

// wireSink serializes commands straight to an io.Writer as it receives
// them; it is what Diff uses.
type wireSink struct{ out io.Writer }

func (s *wireSink) writeLiteral(data []byte) error        { return writeLiteralCommand(s.out, data) }
func (s *wireSink) writeCopy(offset, length uint64) error { return writeCopyCommand(s.out, offset, length) }

// listSink collects commands in memory instead of serializing them. Each
// chunk of DiffParallel writes to its own listSink so the commands can be
// stitched across chunk boundaries before the final encode.
type listSink struct{ cmds []deltaCmd }

func (s *listSink) writeLiteral(data []byte) error {
	s.cmds = append(s.cmds, deltaCmd{literal: data})
	return nil
}

func (s *listSink) writeCopy(offset, length uint64) error {
	s.cmds = append(s.cmds, deltaCmd{isCopy: true, offset: offset, length: length})
	return nil
}

// pendingCopy is the COPY command currently accumulating in a deltaWriter,
// waiting to see whether the next match folds onto its end.
type pendingCopy struct {
	offset uint64
	length uint64
}

// deltaWriter tracks how much of the target has been accounted for (tail)
// and holds one COPY command open so a run of consecutive block matches
// collapses into a single command instead of many.
type deltaWriter struct {
	tail   int
	queued *pendingCopy
	sink   deltaSink
}

// flush writes the queued COPY (if any) followed by a LITERAL covering
// data[tail:until], advancing tail to until. It is a no-op if there is
// nothing new to account for.
func (d *deltaWriter) flush(until int, data []byte) error {
	if d.tail == until {
		return nil
	}
	if d.queued != nil {
		if err := d.sink.writeCopy(d.queued.offset, d.queued.length); err != nil {
			return err
		}
		d.tail += int(d.queued.length)
		d.queued = nil
	}
	if d.tail < until {
		if err := d.sink.writeLiteral(data[d.tail:until]); err != nil {
			return err
		}
		d.tail = until
	}
	return nil
}

// copyAt folds a newly found match [here, here+length) in data, sourced
// from offset in the base sequence, into the queued COPY when it is
// contiguous with it in both the base and the target, and otherwise
// flushes whatever was pending and starts a new queued COPY.
func (d *deltaWriter) copyAt(offset uint64, length uint64, here int, data []byte) error {
	if d.queued != nil {
		contiguousInTarget := uint64(d.tail)+d.queued.length == uint64(here)
		contiguousInBase := d.queued.offset+d.queued.length == offset
		if contiguousInTarget && contiguousInBase {
			d.queued.length += length
			return nil
		}
	}
	if err := d.flush(here, data); err != nil {
		return err
	}
	d.queued = &pendingCopy{offset: offset, length: length}
	return nil
}

func writeLiteralCommand(out io.Writer, data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if uint64(n) > maxLiteralChunk {
			n = maxLiteralChunk
		}
		buf := encodeLiteralHeader(make([]byte, 0, 9+n), uint64(n))
		buf = append(buf, data[:n]...)
		if _, err := out.Write(buf); err != nil {
			return wrapOutputErr(err)
		}
		data = data[n:]
	}
	return nil
}

func writeCopyCommand(out io.Writer, offset, length uint64) error {
	const maxCopyChunk = ^uint64(0)
	for length > 0 {
		n := length
		if n > maxCopyChunk {
			n = maxCopyChunk
		}
		buf := encodeCopy(make([]byte, 0, 17), offset, n)
		if _, err := out.Write(buf); err != nil {
			return wrapOutputErr(err)
		}
		offset += n
		length -= n
	}
	return nil
}

func writeDeltaMagic(out io.Writer) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], deltaMagic)
	if _, err := out.Write(buf[:]); err != nil {
		return wrapOutputErr(err)
	}
	return nil
}

func writeEndCommand(out io.Writer) error {
	if _, err := out.Write([]byte{opEnd}); err != nil {
		return wrapOutputErr(err)
	}
	return nil
}

// Diff scans target against index, which was built from a signature of
// base, and writes the resulting delta to out. Applying the delta to base
// reproduces target exactly.
//
// Unlike the abstract diff(Index, B, sink) signature sketched in the
// package's design notes, base is passed explicitly: matching a candidate
// block is only the first half of the search, and extending that match
// forward requires reading bytes of base beyond the matched block, which
// the index alone — a table of hashes — cannot provide. base is read-only
// and may be shared across concurrent calls to Diff and DiffParallel that
// use the same index.
//
// Diff is deterministic: the same (index, base, target) always produce the
// same byte sequence, which is also what DiffParallel produces for the
// same inputs when the index's algorithm is BLAKE3.
func Diff(index *Index, base, target []byte, out io.Writer) error {
	if err := writeDeltaMagic(out); err != nil {
		return err
	}

	writer := &deltaWriter{sink: &wireSink{out: out}}
	if err := scanAndEmit(index, base, target, 0, len(target), len(target), writer); err != nil {
		return err
	}
	if err := writer.flush(len(target), target); err != nil {
		return err
	}
	return writeEndCommand(out)
}

// scanAndEmit runs the core block-matching loop over target[start:end),
// writing commands to writer as it goes. It does not flush the trailing
// tail or write END; callers do that once they know whether more input
// follows.
//
// readLimit bounds how far a match's forward extension is allowed to look,
// per spec: a chunked caller passes its own e_j+L-1 read window so that a
// worker's probe cost stays local to its chunk even when the underlying
// data would let extension run arbitrarily far; Diff, which has only one
// chunk covering the whole target, passes len(target) so extension is
// bounded only by the data itself. Emission is always capped at end
// regardless of readLimit: DiffParallel's reconcile pass is what recovers
// any match length a chunk's bounded probe left uncommitted.
func scanAndEmit(index *Index, base, target []byte, start, end, readLimit int, writer *deltaWriter) error {
	writer.tail = start
	blockLen := int(index.blockLen)
	strongLen := int(index.strongLen)

	p := start
	var rs rollsum
	fresh := true

	for p < end && p+blockLen <= len(target) {
		if fresh {
			rs = newRollsum(target[p : p+blockLen])
			fresh = false
		}

		idx, length, found := findMatch(index, base, target, p, blockLen, strongLen, rs.value(), readLimit)
		if found {
			// A match found near the right edge of [start, end) may, via
			// forward extension, run past end even though extension
			// itself stopped at readLimit. A chunk must never emit bytes
			// past its own boundary. Cap what gets committed here; the
			// next chunk picks up the remainder on its own, and
			// DiffParallel's reconcile pass, which compares base and
			// target directly rather than trusting the next chunk's own
			// (possibly ambiguous) match, reunites them.
			commit := length
			if p+commit > end {
				commit = end - p
			}
			offset := uint64(idx) * uint64(blockLen)
			if err := writer.copyAt(offset, uint64(commit), p, target); err != nil {
				return err
			}
			p += commit
			fresh = true
			continue
		}

		if p+blockLen < len(target) {
			rs = rs.roll(target[p], target[p+blockLen])
		}
		p++
	}
	return nil
}

// findMatch probes index for the weak hash of target[p:p+blockLen],
// verifying each ascending candidate with the strong hash and, on the
// first verified match, extending it forward as far as base and target
// agree, up to readLimit. Backward extension never happens: a match always
// starts exactly at p.
func findMatch(index *Index, base, target []byte, p, blockLen, strongLen int, weak uint32, readLimit int) (idx int32, length int, ok bool) {
	window := target[p : p+blockLen]
	var strong []byte // computed lazily, at most once per call

	for _, candidate := range index.Lookup(weak) {
		if index.candidateExcluded(candidate) {
			continue
		}
		if strong == nil {
			strong = strongHash(index.algorithm, window)[:strongLen]
		}
		if !bytes.Equal(strong, index.StrongHashAt(candidate)) {
			continue
		}

		aOff, _ := index.BlockSpan(candidate)
		ext := 0
		for {
			ai := int(aOff) + blockLen + ext
			bi := p + blockLen + ext
			if ai >= len(base) || bi >= len(target) || bi >= readLimit {
				break
			}
			if base[ai] != target[bi] {
				break
			}
			ext++
		}
		return candidate, blockLen + ext, true
	}
	return 0, 0, false
}
