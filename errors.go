package rsync

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrInvalidOptions is returned when SignatureOptions describes a
// combination the wire format cannot express: a zero block length, or a
// strong-hash truncation length outside the range the chosen algorithm
// supports.
var ErrInvalidOptions = errors.New("rsync: invalid signature options")

// ErrInvalidSignature is returned when parsing a signature blob that is
// truncated, carries an unknown magic number, or whose payload length is
// not a whole number of block records.
var ErrInvalidSignature = errors.New("rsync: invalid or unsupported signature")

// ErrInvalidDelta is returned when decoding a delta that uses an unknown
// opcode, is truncated mid-command, references bytes outside the base
// sequence, omits its END command, or carries trailing bytes after END.
var ErrInvalidDelta = errors.New("rsync: invalid delta stream")

// OutputError wraps a failure returned by a caller-supplied sink. The
// original error is reachable via Unwrap / errors.Is / errors.As.
type OutputError struct {
	Err error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("rsync: output sink failed: %v", e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

func wrapOutputErr(err error) error {
	if err == nil {
		return nil
	}
	return &OutputError{Err: err}
}

// WorkerError aggregates the first non-cancellation failure observed by any
// worker during a parallel delta search. Every remaining worker is
// cancelled once the first failure is observed.
type WorkerError struct {
	Err error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("rsync: parallel worker failed: %v", e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }
