// Package types holds the JSON envelopes written by every /api and /health endpoint.
package types

import "github.com/angelmondragon/localdrop/pkg/errors"

// SuccessEnvelope wraps a successful payload such as an OTP send or verify result.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the machine-readable failure. Clients branch on Code, e.g. to
// tell an expired passcode from a locked one; RequestID matches the
// X-Request-Id response header.
type ErrorBody struct {
	Code      errors.Code `json:"code"`
	Message   string      `json:"message"`
	Details   any         `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}
