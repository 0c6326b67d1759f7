// Package protocol implements the rfs wire format.
//
// All integers are big-endian. A request is a u32 argument count followed by
// that many u32-length-prefixed arguments, each carrying a trailing NUL that
// is counted in its length. A response is a single u32-length-prefixed blob;
// for get it is preceded by a u16 outcome flag. A put request is followed by
// a u32-length-prefixed data frame holding the raw file bytes.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/berrythewa/rfs/internal/transport"
)

const (
	// MaxRequestArgs caps the words a client sends: the command plus two arguments.
	MaxRequestArgs = 3

	DefaultMaxArgs    = 64
	DefaultMaxArgLen  = 1 << 20
	DefaultMaxPayload = math.MaxUint32

	lenPrefixSize = 4
	outcomeSize   = 2
)

// Limits bounds the lengths a reader accepts before allocating.
type Limits struct {
	MaxArgs    uint32
	MaxArgLen  uint32
	MaxPayload uint32
}

// DefaultLimits returns limits generous enough for any well-behaved peer.
func DefaultLimits() Limits {
	return Limits{
		MaxArgs:    DefaultMaxArgs,
		MaxArgLen:  DefaultMaxArgLen,
		MaxPayload: DefaultMaxPayload,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxArgs == 0 {
		l.MaxArgs = d.MaxArgs
	}
	if l.MaxArgLen == 0 {
		l.MaxArgLen = d.MaxArgLen
	}
	if l.MaxPayload == 0 {
		l.MaxPayload = d.MaxPayload
	}
	return l
}

// readFull fills buf or fails. A short read is a *ProtocolDesyncError.
func readFull(r io.Reader, buf []byte, op string) error {
	n, err := transport.ReadExactly(r, buf)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return &ProtocolDesyncError{Op: op, Want: len(buf), Got: 0, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if n < len(buf) {
		return &ProtocolDesyncError{Op: op, Want: len(buf), Got: n}
	}
	return nil
}

// writeFull writes buf in full or fails. A short write is a *ProtocolDesyncError.
func writeFull(w io.Writer, buf []byte, op string) error {
	n, err := transport.WriteExactly(w, buf)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n < len(buf) {
		return &ProtocolDesyncError{Op: op, Want: len(buf), Got: n}
	}
	return nil
}

func readU32(r io.Reader, op string) (uint32, error) {
	var b [lenPrefixSize]byte
	if err := readFull(r, b[:], op); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeU32(w io.Writer, v uint32, op string) error {
	var b [lenPrefixSize]byte
	binary.BigEndian.PutUint32(b[:], v)
	return writeFull(w, b[:], op)
}

// WriteFrame writes a length prefix followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: payload of %d bytes", ErrFrameTooLarge, len(payload))
	}
	if err := writeU32(w, uint32(len(payload)), "write frame length"); err != nil {
		return err
	}
	return writeFull(w, payload, "write frame body")
}

// ReadFrame reads one length-prefixed frame. A declared length above limit is
// rejected before anything is allocated; a limit of 0 means none.
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	n, err := ReadFrameHeader(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && n > limit {
		return nil, fmt.Errorf("%w: frame of %d bytes, limit %d", ErrFrameTooLarge, n, limit)
	}
	buf := make([]byte, n)
	if err := readFull(r, buf, "read frame body"); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadFrameHeader reads only the length prefix of a frame, leaving the body
// on the stream for CopyFrameBody.
func ReadFrameHeader(r io.Reader) (uint32, error) {
	return readU32(r, "read frame length")
}

// CopyFrameBody moves exactly n body bytes from r to dst. When dst fails the
// remaining bytes are still drained from r so the stream stays in sync, and
// the dst failure is returned as a *SinkError. Any other error means the
// stream itself broke.
func CopyFrameBody(dst io.Writer, r io.Reader, n uint32) (int64, error) {
	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	var (
		copied  int64
		sinkErr error
		remains = int64(n)
	)
	for remains > 0 {
		size := int64(chunk)
		if remains < size {
			size = remains
		}
		if err := readFull(r, buf[:size], "read frame body"); err != nil {
			return copied, err
		}
		remains -= size
		if sinkErr != nil {
			continue
		}
		written, err := transport.WriteExactly(dst, buf[:size])
		copied += int64(written)
		if err == nil && int64(written) < size {
			err = io.ErrShortWrite
		}
		if err != nil {
			sinkErr = &SinkError{Err: err}
		}
	}
	return copied, sinkErr
}

// WriteText writes s as a NUL-terminated frame; the terminator is counted in
// the length prefix.
func WriteText(w io.Writer, s string) error {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return WriteFrame(w, buf)
}

// TrimText strips the single NUL terminator a text frame carries.
func TrimText(b []byte) string {
	if n := len(b); n > 0 && b[n-1] == 0 {
		b = b[:n-1]
	}
	return string(b)
}

// WriteOutcome writes the u16 flag that precedes a get response.
func WriteOutcome(w io.Writer, o Outcome) error {
	var b [outcomeSize]byte
	binary.BigEndian.PutUint16(b[:], uint16(o))
	return writeFull(w, b[:], "write outcome")
}

// ReadOutcome reads the u16 flag that precedes a get response. Any non-zero
// value other than success is rejected.
func ReadOutcome(r io.Reader) (Outcome, error) {
	var b [outcomeSize]byte
	if err := readFull(r, b[:], "read outcome"); err != nil {
		return OutcomeFailure, err
	}
	o := Outcome(binary.BigEndian.Uint16(b[:]))
	if o != OutcomeSuccess && o != OutcomeFailure {
		return OutcomeFailure, fmt.Errorf("read outcome: unexpected flag %d", o)
	}
	return o, nil
}
