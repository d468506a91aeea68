package api

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// Base errors returned by the client. Every failure that reaches the caller
// matches one of them with errors.Is.
var (
	// ErrTransport covers connection failures, non-2xx statuses and response
	// bodies that cannot be parsed.
	ErrTransport = errors.New("transport error")

	// ErrAuthExpired is returned for any 401. The stored token is cleared
	// before the error is returned.
	ErrAuthExpired = errors.Wrap(ErrTransport, "authentication expired")

	// ErrInvalidPayload is a client-side validation failure; no request is sent.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrEmailExists is the backend's duplicate-user rejection.
	ErrEmailExists = errors.New("a user with this email already exists")
)

const fallbackMessage = "request_failed"

// Error is a failed backend call. Message is the backend's own "error" or
// "message" field when it sent one.
type Error struct {
	Status  int
	Message string
	kind    error
}

func (e *Error) Error() string { return e.Message }

// Unwrap exposes the error kind (ErrTransport, ErrAuthExpired, ...).
func (e *Error) Unwrap() error { return e.kind }

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func newStatusError(status int, body []byte) *Error {
	msg := errorMessage(body, status)
	kind := ErrTransport
	switch {
	case status == http.StatusUnauthorized:
		kind = ErrAuthExpired
	case msg == "email_exists":
		kind = errors.Mark(ErrTransport, ErrEmailExists)
	}
	return &Error{Status: status, Message: msg, kind: kind}
}

func newNetworkError(err error) *Error {
	return &Error{Message: "network error: " + err.Error(), kind: ErrTransport}
}

func newDecodeError(what string) *Error {
	return &Error{Message: "invalid " + what + " response body", kind: ErrTransport}
}

// errorMessage picks the backend "error" field, then "message", then the
// status text, then a generic fallback.
func errorMessage(body []byte, status int) string {
	if gjson.ValidBytes(body) {
		res := gjson.ParseBytes(body)
		for _, field := range []string{"error", "message"} {
			if v := res.Get(field); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
				return v.Str
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fallbackMessage
}
