package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolDesync matches any *ProtocolDesyncError.
	ErrProtocolDesync = errors.New("protocol desynchronized")

	// ErrEmptyRequest is returned for a request frame declaring zero arguments.
	ErrEmptyRequest = errors.New("request has no arguments")

	// ErrFrameTooLarge is returned when a declared length exceeds the reader's limit.
	ErrFrameTooLarge = errors.New("frame exceeds limit")
)

// ProtocolDesyncError reports a declared length the stream did not satisfy.
// The connection it happened on cannot be used any further.
type ProtocolDesyncError struct {
	Op   string
	Want int
	Got  int
	Err  error
}

func (e *ProtocolDesyncError) Error() string {
	msg := fmt.Sprintf("%s: short transfer (%d of %d bytes)", e.Op, e.Got, e.Want)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolDesyncError) Unwrap() error { return e.Err }

func (e *ProtocolDesyncError) Is(target error) bool { return target == ErrProtocolDesync }

// SinkError reports that the destination of CopyFrameBody failed. The frame
// was still consumed in full, so the connection remains usable.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string { return e.Err.Error() }

func (e *SinkError) Unwrap() error { return e.Err }
