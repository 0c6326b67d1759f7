package server

import (
	"io"

	"github.com/berrythewa/rfs/internal/protocol"
)

// Response is the single reply to one request. It owns its payload; the
// connection loop writes it and then releases it.
type Response struct {
	// WithOutcome marks a get reply, whose frame is preceded by Outcome.
	WithOutcome bool
	Outcome     protocol.Outcome

	// Payload is raw bytes for a successful get and text otherwise.
	Payload []byte
	Text    bool

	// Failure holds the command-level error reported in the payload, if any.
	Failure error

	// Stored is the number of bytes a put wrote.
	Stored int64
}

func textResponse(s string) *Response {
	return &Response{Payload: []byte(s), Text: true}
}

func failureResponse(prefix string, err error) *Response {
	r := textResponse(prefix + ": " + err.Error())
	r.Failure = err
	return r
}

// OK reports whether the command succeeded.
func (r *Response) OK() bool {
	if r.WithOutcome {
		return r.Outcome.OK()
	}
	return r.Failure == nil
}

// Send writes the outcome flag when required and then the response frame.
func (r *Response) Send(w io.Writer) error {
	if r.WithOutcome {
		if err := protocol.WriteOutcome(w, r.Outcome); err != nil {
			return err
		}
	}
	if r.Text {
		return protocol.WriteText(w, string(r.Payload))
	}
	return protocol.WriteFrame(w, r.Payload)
}

// WireLen is the length prefix the response frame carries.
func (r *Response) WireLen() int {
	if r.Text {
		return len(r.Payload) + 1
	}
	return len(r.Payload)
}

// Release drops the payload once it has been sent.
func (r *Response) Release() {
	r.Payload = nil
}
