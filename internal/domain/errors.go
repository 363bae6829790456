// Package domain provides the classified error type shared by every component.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind represents the category of a failure surfaced to the UI layer.
type ErrorKind string

const (
	// KindUnsupportedAction indicates an action name outside the known set.
	KindUnsupportedAction ErrorKind = "unsupported_action"

	// KindNetwork indicates a transport failure (connect, DNS, TLS, timeout).
	KindNetwork ErrorKind = "network"

	// KindUnauthorized indicates the gateway answered 401.
	KindUnauthorized ErrorKind = "unauthorized"

	// KindForbidden indicates the gateway answered 403.
	KindForbidden ErrorKind = "forbidden"

	// KindRateLimited indicates the gateway answered 429.
	KindRateLimited ErrorKind = "rate_limited"

	// KindUpstream indicates any other non-2xx gateway status.
	KindUpstream ErrorKind = "upstream_error"

	// KindResponseParse indicates a 2xx body that is not a valid envelope.
	KindResponseParse ErrorKind = "response_parse"

	// KindEmptyResponse indicates a valid envelope without usable content.
	KindEmptyResponse ErrorKind = "empty_response"

	// KindInvalidShortcutSyntax indicates an accelerator string that failed to parse.
	KindInvalidShortcutSyntax ErrorKind = "invalid_shortcut_syntax"

	// KindShortcutRegistration indicates the hotkey registry refused a binding.
	KindShortcutRegistration ErrorKind = "shortcut_registration"

	// KindSurfaceOperation indicates an overlay surface step failed.
	KindSurfaceOperation ErrorKind = "surface_operation_failed"

	// KindPersistence indicates the settings store could not be written.
	KindPersistence ErrorKind = "persistence_failure"

	// KindClipboard indicates a clipboard read or write failed.
	KindClipboard ErrorKind = "clipboard"

	// KindAutostart indicates a login-item operation failed.
	KindAutostart ErrorKind = "autostart"

	// KindInvalidRequest indicates a malformed command request.
	KindInvalidRequest ErrorKind = "invalid_request"
)

// Error is a classified failure. Message is the human-readable detail shown to
// the user; the remaining fields carry diagnostics for specific kinds.
type Error struct {
	// Kind is the category of failure
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable detail
	Message string `json:"message"`

	// Status is the upstream HTTP status for gateway classifications
	Status int `json:"status,omitempty"`

	// Step names the surface operation for KindSurfaceOperation
	Step string `json:"step,omitempty"`

	// Body is the raw upstream response body, when one was read
	Body string `json:"-"`

	// Err is the underlying cause, if any
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status the local command API answers with.
func (e *Error) HTTPStatusCode() int {
	switch e.Kind {
	case KindUnsupportedAction, KindInvalidShortcutSyntax, KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindShortcutRegistration:
		return http.StatusConflict
	case KindNetwork, KindUpstream, KindResponseParse, KindEmptyResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError creates a new classified error.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// WithStatus records the upstream HTTP status.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// WithStep records the failing surface step.
func (e *Error) WithStep(step string) *Error {
	e.Step = step
	return e
}

// WithBody records the raw upstream body.
func (e *Error) WithBody(body string) *Error {
	e.Body = body
	return e
}

// WithCause records the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

// KindOf returns the classification of err, or "" if err is not classified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsError returns the classified error inside err, if any.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Convenience constructors for common errors

// ErrUnsupportedAction creates an unsupported action error.
func ErrUnsupportedAction(action string) *Error {
	return NewError(KindUnsupportedAction, fmt.Sprintf("Unknown action specified: %q", action))
}

// ErrSurface creates a surface operation error for the named step.
func ErrSurface(step string, err error) *Error {
	msg := "surface operation failed"
	if err != nil {
		msg = err.Error()
	}
	return NewError(KindSurfaceOperation, msg).WithStep(step).WithCause(err)
}

// ErrPersistence creates a persistence error.
func ErrPersistence(err error) *Error {
	return NewError(KindPersistence, fmt.Sprintf("Failed to save settings: %v", err)).WithCause(err)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *Error {
	return NewError(KindInvalidRequest, message)
}
