package octio

import (
	"io"

	"github.com/pkg/errors"
)

// ErrEOF is returned by read operations when the underlying FillSource has
// no more bytes to offer and none remain buffered. It is io.EOF so that
// errors.Is(err, io.EOF) keeps working through any wrapping this package
// adds.
var ErrEOF = io.EOF

// ArgumentError reports a negative size, negative index, or a range that
// exceeds the target array — the "argument violation" error kind.
type ArgumentError struct {
	Op  string
	Msg string
}

func (e *ArgumentError) Error() string {
	return "octio: " + e.Op + ": " + e.Msg
}

func newArgumentError(op, msg string) error {
	return &ArgumentError{Op: op, Msg: msg}
}

// StateError reports an operation on a closed instance, a double-recycle,
// or any other state violation.
type StateError struct {
	Op  string
	Msg string
}

func (e *StateError) Error() string {
	return "octio: " + e.Op + ": " + e.Msg
}

func newStateError(op, msg string) error {
	return &StateError{Op: op, Msg: msg}
}

// wrapHookError preserves the cause of an error returned by a
// subclass-supplied FillSource/FlushSink hook while the core attaches
// chunk-release context. Kept distinct from plain sentinel propagation:
// this is the one place the core adds to an error instead of letting it
// surface unchanged.
func wrapHookError(err error, op string) error {
	if err == nil {
		return nil
	}
	if err == io.EOF {
		return err
	}
	return errors.Wrap(err, "octio: "+op)
}
