package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// Request is a decoded request frame. Args holds everything after the
// command name.
type Request struct {
	Command Command
	Args    []string
}

// NewRequest builds a request from a command and its arguments as given.
func NewRequest(cmd string, args ...string) Request {
	return Request{Command: Command(cmd), Args: args}
}

// Capped returns a copy of r holding at most MaxRequestArgs words.
func (r Request) Capped() Request {
	if len(r.Args) > MaxRequestArgs-1 {
		r.Args = r.Args[:MaxRequestArgs-1]
	}
	return r
}

// Arg returns the i-th argument after the command name.
func (r Request) Arg(i int) (string, bool) {
	if i < 0 || i >= len(r.Args) {
		return "", false
	}
	return r.Args[i], true
}

// Words returns the command followed by its arguments, as sent on the wire.
func (r Request) Words() []string {
	words := make([]string, 0, len(r.Args)+1)
	words = append(words, string(r.Command))
	return append(words, r.Args...)
}

// WriteRequest encodes r as a request frame. Each word is written with a
// trailing NUL counted in its length.
func WriteRequest(w io.Writer, r Request) error {
	words := r.Words()
	var buf bytes.Buffer
	if err := writeU32(&buf, uint32(len(words)), "write argument count"); err != nil {
		return err
	}
	for _, word := range words {
		if err := WriteText(&buf, word); err != nil {
			return err
		}
	}
	return writeFull(w, buf.Bytes(), "write request")
}

// ReadRequest decodes a request frame. A zero argument count is
// ErrEmptyRequest; a count or length over lim is ErrFrameTooLarge. Each
// argument loses exactly the one terminator the encoder added.
func ReadRequest(r io.Reader, lim Limits) (Request, error) {
	lim = lim.WithDefaults()

	count, err := readU32(r, "read argument count")
	if err != nil {
		return Request{}, err
	}
	if count == 0 {
		return Request{}, ErrEmptyRequest
	}
	if count > lim.MaxArgs {
		return Request{}, fmt.Errorf("%w: %d arguments, limit %d", ErrFrameTooLarge, count, lim.MaxArgs)
	}

	words := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		arg, err := ReadFrame(r, lim.MaxArgLen)
		if err != nil {
			return Request{}, fmt.Errorf("argument %d: %w", i, err)
		}
		words = append(words, TrimText(arg))
	}

	req := Request{Command: Command(words[0])}
	if len(words) > 1 {
		req.Args = words[1:]
	}
	return req, nil
}
