package gateway

import (
	"bytes"
	"encoding/json"
	"strings"
)

// MsgDone is the in-band success marker.
const MsgDone = "done"

// ErrorOutOfStock is the error value the API uses for unavailable items.
const ErrorOutOfStock = "stock"

// Envelope carries the in-band markers present on every response.
type Envelope struct {
	Msg     string          `json:"msg"`
	Message string          `json:"message,omitempty"`
	Err     json.RawMessage `json:"error,omitempty"`
}

// OK reports the success marker without an error field.
func (e Envelope) OK() bool {
	return strings.EqualFold(strings.TrimSpace(e.Msg), MsgDone) && !e.Rejected()
}

// Rejected reports a truthy error field.
func (e Envelope) Rejected() bool {
	raw := bytes.TrimSpace(e.Err)
	switch string(raw) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}

// ErrorCode returns the error field when the API sent it as a string.
func (e Envelope) ErrorCode() string {
	var code string
	if err := json.Unmarshal(e.Err, &code); err != nil {
		return ""
	}
	return strings.TrimSpace(code)
}

// OutOfStock reports the stock rejection.
func (e Envelope) OutOfStock() bool {
	return strings.EqualFold(e.ErrorCode(), ErrorOutOfStock)
}

// Failure returns the best human readable rejection text, or fallback.
func (e Envelope) Failure(fallback string) string {
	if m := strings.TrimSpace(e.Message); m != "" {
		return m
	}
	if m := strings.TrimSpace(e.Msg); m != "" && !strings.EqualFold(m, MsgDone) {
		return m
	}
	if code := e.ErrorCode(); code != "" && strings.Contains(code, " ") {
		return code
	}
	return fallback
}
