// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Apply reads a delta produced by Diff or DiffParallel from delta,
// reconstructs the original target by interleaving LITERAL bytes from the
// delta itself with COPY spans read out of base, and writes the result to
// out. base must be the exact sequence the delta's signature was built
// from.
//
// Apply returns ErrInvalidDelta if the stream is malformed: bad magic, an
// unrecognized opcode, a COPY whose span falls outside base, a LITERAL or
// COPY that runs past the end of the stream, or trailing bytes after END.
// Failures writing to out are wrapped in *OutputError.
func Apply(base []byte, delta io.Reader, out io.Writer) error {
	r := &deltaReader{r: delta}

	magic, err := r.readUint32()
	if err != nil {
		return errors.Wrap(ErrInvalidDelta, "truncated magic")
	}
	if magic != deltaMagic {
		return errors.Wrapf(ErrInvalidDelta, "unexpected magic 0x%08x", magic)
	}

	for {
		op, err := r.readByte()
		if err != nil {
			return errors.Wrap(ErrInvalidDelta, "truncated command stream")
		}

		switch {
		case op == opEnd:
			if _, err := r.readByte(); err != io.EOF {
				if err == nil {
					return errors.Wrap(ErrInvalidDelta, "trailing data after END")
				}
				return errors.Wrap(ErrInvalidDelta, "error checking for trailing data")
			}
			return nil

		case op >= opLiteral1 && op <= opLiteral64:
			n := uint64(op-opLiteral1) + 1
			if err := r.copyLiteral(out, n); err != nil {
				return err
			}

		case op >= opLiteralN1 && op <= opLiteralN8:
			width := widthBytes[op-opLiteralN1]
			n, err := r.readOperand(width)
			if err != nil {
				return errors.Wrap(ErrInvalidDelta, "truncated literal length operand")
			}
			if n == 0 {
				return errors.Wrap(ErrInvalidDelta, "zero-length literal")
			}
			if err := r.copyLiteral(out, n); err != nil {
				return err
			}

		case op >= opCopyN1N1 && op <= opCopyN8N8:
			rel := int(op - opCopyN1N1)
			ow := widthBytes[rel/4]
			lw := widthBytes[rel%4]
			offset, err := r.readOperand(ow)
			if err != nil {
				return errors.Wrap(ErrInvalidDelta, "truncated copy offset operand")
			}
			length, err := r.readOperand(lw)
			if err != nil {
				return errors.Wrap(ErrInvalidDelta, "truncated copy length operand")
			}
			if length == 0 {
				return errors.Wrap(ErrInvalidDelta, "zero-length copy")
			}
			if offset > uint64(len(base)) || length > uint64(len(base))-offset {
				return errors.Wrapf(ErrInvalidDelta, "copy [%d,%d) out of bounds for base of length %d", offset, offset+length, len(base))
			}
			if _, err := out.Write(base[offset : offset+length]); err != nil {
				return wrapOutputErr(err)
			}

		default:
			return errors.Wrapf(ErrInvalidDelta, "unrecognized opcode 0x%02x", op)
		}
	}
}

// deltaReader is a small buffered cursor over the delta stream, used only
// by Apply. It never seeks backward.
type deltaReader struct {
	r   io.Reader
	buf [8]byte
}

func (d *deltaReader) readByte() (byte, error) {
	if _, err := io.ReadFull(d.r, d.buf[:1]); err != nil {
		return 0, err
	}
	return d.buf[0], nil
}

func (d *deltaReader) readUint32() (uint32, error) {
	if _, err := io.ReadFull(d.r, d.buf[:4]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(d.buf[:4]), nil
}

func (d *deltaReader) readOperand(width int) (uint64, error) {
	if _, err := io.ReadFull(d.r, d.buf[:width]); err != nil {
		return 0, err
	}
	return getOperand(d.buf[:width], width), nil
}

// taggedWriteErr marks an error as having come from the io.Writer side of
// an io.CopyN, so copyLiteral can tell it apart from a read failure on the
// delta stream without caring what io.CopyN's own error plumbing does.
type taggedWriteErr struct{ err error }

func (e taggedWriteErr) Error() string { return e.err.Error() }
func (e taggedWriteErr) Unwrap() error { return e.err }

// taggingWriter wraps an io.Writer so any error it returns arrives at the
// caller as a taggedWriteErr, distinguishing it from whatever io.CopyN's
// underlying Read returned.
type taggingWriter struct{ w io.Writer }

func (t taggingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		return n, taggedWriteErr{err}
	}
	return n, nil
}

// copyLiteral streams exactly n bytes from the delta straight to out,
// without buffering the whole literal in memory. Like every other read off
// d.r in this file, a failure reading the delta stream itself — whether a
// clean truncation or any other error — is reported as ErrInvalidDelta;
// only a failure writing to out is an *OutputError.
func (d *deltaReader) copyLiteral(out io.Writer, n uint64) error {
	_, err := io.CopyN(taggingWriter{out}, d.r, int64(n))
	if err == nil {
		return nil
	}

	var tagged taggedWriteErr
	if errors.As(err, &tagged) {
		return wrapOutputErr(tagged.err)
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return errors.Wrap(ErrInvalidDelta, "literal runs past end of stream")
	}
	return errors.Wrap(ErrInvalidDelta, "error reading literal payload")
}
