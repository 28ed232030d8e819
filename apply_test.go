// This Source Code Form is subject to the terms of the Mozilla Public
// License, version 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package rsync

import (
	"bytes"
	"io"
	"testing"

	"github.com/hooklift/assert"
	"github.com/pkg/errors"
)

func TestApplyRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	buf.WriteByte(opEnd)

	var out bytes.Buffer
	err := Apply(nil, &buf, &out)
	assert.Cond(t, err != nil, "bad magic should be rejected")
}

func TestApplyRejectsCopyOutOfBounds(t *testing.T) {
	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	assert.Ok(t, writeCopyCommand(&buf, 0, 100))
	assert.Ok(t, writeEndCommand(&buf))

	var out bytes.Buffer
	err := Apply(make([]byte, 50), bytes.NewReader(buf.Bytes()), &out)
	assert.Cond(t, err != nil, "copy extending past base should be rejected")
}

func TestApplyRejectsTrailingData(t *testing.T) {
	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	assert.Ok(t, writeEndCommand(&buf))
	buf.WriteByte(0xFF)

	var out bytes.Buffer
	err := Apply(nil, bytes.NewReader(buf.Bytes()), &out)
	assert.Cond(t, err != nil, "trailing bytes after END should be rejected")
}

func TestApplyRejectsTruncatedLiteral(t *testing.T) {
	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	buf.Write([]byte{opLiteral1 + 9}) // claims 10 literal bytes, supplies none

	var out bytes.Buffer
	err := Apply(nil, bytes.NewReader(buf.Bytes()), &out)
	assert.Cond(t, err != nil, "truncated literal should be rejected")
}

func TestApplyRejectsUnknownOpcode(t *testing.T) {
	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	buf.WriteByte(0x99)

	var out bytes.Buffer
	err := Apply(nil, bytes.NewReader(buf.Bytes()), &out)
	assert.Cond(t, err != nil, "unrecognized opcode should be rejected")
}

// failingWriter errors on every Write, to check that a LITERAL command
// that fails to reach out is reported as an *OutputError rather than
// mislabeled as a corrupt delta stream.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, io.ErrClosedPipe }

func TestApplyReportsLiteralWriteFailureAsOutputError(t *testing.T) {
	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	assert.Ok(t, writeLiteralCommand(&buf, []byte("hello")))
	assert.Ok(t, writeEndCommand(&buf))

	err := Apply(nil, bytes.NewReader(buf.Bytes()), failingWriter{})
	assert.Cond(t, err != nil, "a failing output writer should surface an error")

	var outErr *OutputError
	assert.Cond(t, errors.As(err, &outErr), "write failure should be an *OutputError, not ErrInvalidDelta")
}

func TestApplyLiteralAndCopyMix(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")

	var buf bytes.Buffer
	assert.Ok(t, writeDeltaMagic(&buf))
	assert.Ok(t, writeCopyCommand(&buf, 4, 5)) // "quick"
	assert.Ok(t, writeLiteralCommand(&buf, []byte(" ")))
	assert.Ok(t, writeCopyCommand(&buf, 10, 5)) // "brown"
	assert.Ok(t, writeEndCommand(&buf))

	var out bytes.Buffer
	assert.Ok(t, Apply(base, bytes.NewReader(buf.Bytes()), &out))
	assert.Equals(t, "quick brown", out.String())
}
