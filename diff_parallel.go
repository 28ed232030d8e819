// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"context"
	"io"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// chunkRange is a half-open [start, end) span of target assigned to one
// worker of DiffParallel. Boundaries always fall on a multiple of blockLen
// (except the final end, which is len(target)): this is what lets
// reconcileCmds recognize a match continuing across a boundary by reading
// base/target directly, the same way it would recognize one anywhere else.
type chunkRange struct{ start, end int }

// planChunks divides [0, n) into roughly equal contiguous spans, about one
// per worker, each a multiple of blockLen long except possibly the last.
// The span length is the number of whole blocks in n divided by workers,
// rounded up; when n is not a multiple of blockLen the leftover bytes can
// form one span more than workers.
func planChunks(n, blockLen, workers int) []chunkRange {
	if workers < 1 {
		workers = 1
	}
	chunkBlocks := (n/blockLen + workers - 1) / workers
	if chunkBlocks < 1 {
		chunkBlocks = 1
	}
	chunkSize := chunkBlocks * blockLen

	var ranges []chunkRange
	for s := 0; s < n; s += chunkSize {
		e := s + chunkSize
		if e > n {
			e = n
		}
		ranges = append(ranges, chunkRange{s, e})
		if e == n {
			break
		}
	}
	return ranges
}

// diffChunk runs the same block-matching search Diff uses, confined to
// [r.start, r.end), and returns its commands unserialized so DiffParallel
// can reconcile matches that straddle chunk boundaries before encoding.
//
// Its read window for match extension reaches blockLen-1 bytes past r.end,
// per spec: enough to discover that a match starting inside this chunk
// keeps going into the next one, without having to search the whole rest
// of target to find out.
func diffChunk(ctx context.Context, index *Index, base, target []byte, r chunkRange) ([]deltaCmd, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	readLimit := r.end + int(index.blockLen) - 1
	if readLimit > len(target) {
		readLimit = len(target)
	}

	sink := &listSink{}
	writer := &deltaWriter{sink: sink}
	if err := scanAndEmit(index, base, target, r.start, r.end, readLimit, writer); err != nil {
		return nil, err
	}
	if err := writer.flush(r.end, target); err != nil {
		return nil, err
	}
	return sink.cmds, nil
}

// reconcileCmds concatenates per-chunk command lists in target order and
// repairs the discontinuity chunked search introduces: a match that a
// chunk had to truncate at its own boundary, or one the next chunk
// rediscovered independently and so may have anchored to a different (but
// equally valid, by the ascending-record-index rule) source block than the
// one actually contiguous with it — uniform or repeating content makes
// this ambiguity common, since many blocks of A share the same hash.
//
// Sequential search never has to resolve that ambiguity: once it finds a
// match it keeps extending the same one, by direct byte comparison, for as
// long as base and target agree, never re-probing the index mid-extension;
// it only calls findMatch again, fresh, at the exact position that
// extension finally stops. reconcileCmds mirrors both halves of that: it
// extends an open COPY across a chunk boundary by the same direct
// comparison, and when that extension runs dry strictly inside a later
// chunk's own COPY command, it does not keep that command's remainder
// under its original (now stale) offset — a fresh ascending-index probe at
// the stopping position might resolve to a different, lower-indexed block
// than the arithmetic continuation of an offset validated for a different
// window. Instead it reseeds: it hands off to scanAndEmit at exactly that
// position, the same function Diff itself uses, and takes whatever it
// finds as authoritative for the remainder of target. A LITERAL has no
// offset to go stale, so a partial extension into one is simply kept.
func reconcileCmds(index *Index, base, target []byte, lists [][]deltaCmd) []deltaCmd {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	out := make([]deltaCmd, 0, total)
	pos := 0

	appendLiteral := func(data []byte) {
		if n := len(out); n > 0 && !out[n-1].isCopy {
			out[n-1].literal = append(out[n-1].literal, data...)
			return
		}
		out = append(out, deltaCmd{literal: append([]byte(nil), data...)})
	}

list:
	for _, l := range lists {
		for _, cmd := range l {
			cmdLen := int(cmd.length)
			srcOffset := cmd.offset
			var literal []byte
			if !cmd.isCopy {
				cmdLen = len(cmd.literal)
				literal = cmd.literal
			}

			consumed := 0
			for consumed < cmdLen {
				if n := len(out); n > 0 && out[n-1].isCopy {
					open := &out[n-1]
					contFrom := open.offset + open.length
					extended := 0
					for contFrom+uint64(extended) < uint64(len(base)) &&
						pos+extended < len(target) &&
						consumed+extended < cmdLen &&
						base[contFrom+uint64(extended)] == target[pos+extended] {
						extended++
					}
					if extended > 0 {
						open.length += uint64(extended)
						pos += extended
						consumed += extended
						if cmd.isCopy && consumed < cmdLen {
							out = reseed(index, base, target, pos, out)
							break list
						}
						continue
					}
				}

				remaining := cmdLen - consumed
				if cmd.isCopy {
					out = append(out, deltaCmd{isCopy: true, offset: srcOffset + uint64(consumed), length: uint64(remaining)})
					pos += remaining
					consumed += remaining
				} else {
					appendLiteral(literal[consumed : consumed+remaining])
					pos += remaining
					consumed += remaining
				}
			}
		}
	}
	return out
}

// reseed resumes the real sequential search (the same scanAndEmit Diff
// calls) at target[pos:], appending what it finds to out, and discards
// every not-yet-processed raw command from the chunks being merged: once a
// fresh probe is needed at pos, it alone determines everything from pos
// onward, exactly as if Diff itself had reached pos by whatever path.
func reseed(index *Index, base, target []byte, pos int, out []deltaCmd) []deltaCmd {
	sink := &listSink{}
	writer := &deltaWriter{tail: pos, sink: sink}
	// Neither scanAndEmit nor flush can fail here: listSink's writeLiteral
	// and writeCopy never return an error.
	_ = scanAndEmit(index, base, target, pos, len(target), len(target), writer)
	_ = writer.flush(len(target), target)
	return append(out, sink.cmds...)
}

// encodeCmds serializes a reconciled command list and writes END.
func encodeCmds(cmds []deltaCmd, out io.Writer) error {
	for _, c := range cmds {
		if c.isCopy {
			if err := writeCopyCommand(out, c.offset, c.length); err != nil {
				return err
			}
			continue
		}
		if err := writeLiteralCommand(out, c.literal); err != nil {
			return err
		}
	}
	return writeEndCommand(out)
}

// DiffParallel is the parallel counterpart to Diff. It partitions target
// into block-aligned spans, one per GOMAXPROCS worker goroutine, searches
// each span independently against the shared, read-only index and base,
// and reconciles the results. Its output is byte-identical to what Diff
// produces for the same (index, base, target).
//
// Parallel search is only meaningful for BLAKE3 signatures; MD4 deltas are
// always computed sequentially, since MD4 signatures are expected to be
// small enough, or interoperability-bound tightly enough with librsync,
// that the complexity is not worth it.
//
// If any worker fails, the remaining workers are cancelled and the first
// non-cancellation error is returned wrapped in a *WorkerError; out is not
// written to in that case.
func DiffParallel(index *Index, base, target []byte, out io.Writer) error {
	if index.algorithm != BLAKE3 {
		return Diff(index, base, target, out)
	}

	blockLen := int(index.blockLen)
	workers := runtime.GOMAXPROCS(0)
	if len(target) == 0 || workers <= 1 || len(target) <= blockLen {
		return Diff(index, base, target, out)
	}

	ranges := planChunks(len(target), blockLen, workers)
	if len(ranges) <= 1 {
		return Diff(index, base, target, out)
	}

	results := make([][]deltaCmd, len(ranges))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	for i, r := range ranges {
		wg.Add(1)
		go func(i int, r chunkRange) {
			defer wg.Done()
			cmds, err := diffChunk(ctx, index, base, target, r)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					errOnce.Do(func() {
						firstErr = err
						cancel()
					})
				}
				return
			}
			results[i] = cmds
		}(i, r)
	}
	wg.Wait()

	if firstErr != nil {
		return &WorkerError{Err: firstErr}
	}

	if err := writeDeltaMagic(out); err != nil {
		return err
	}
	return encodeCmds(reconcileCmds(index, base, target, results), out)
}
