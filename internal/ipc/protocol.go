package ipc

import "encoding/json"

// Control commands understood by a running rfsd.
const (
	CmdPing   = "ping"
	CmdStatus = "status"
)

// Request is a control command sent from the CLI to a running server.
type Request struct {
	Command string                 `json:"command"`
	Args    map[string]interface{} `json:"args,omitempty"`
}

// Response is the server's reply to a control Request.
type Response struct {
	Status  string          `json:"status"` // "ok" or "error"
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// OK builds a successful response carrying data encoded as JSON.
func OK(data interface{}) *Response {
	if data == nil {
		return &Response{Status: "ok"}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Error("failed to encode response: " + err.Error())
	}
	return &Response{Status: "ok", Data: raw}
}

// Error builds a failed response.
func Error(msg string) *Response {
	return &Response{Status: "error", Message: msg}
}

// Decode unmarshals the response data into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Data, v)
}
