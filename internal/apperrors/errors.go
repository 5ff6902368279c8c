package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is the error code surfaced to clients
type Kind string

const (
	BadRequest        Kind = "BAD_REQUEST"
	Unauthorized      Kind = "UNAUTHORIZED"
	Forbidden         Kind = "FORBIDDEN"
	RateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	QuotaExceeded     Kind = "QUOTA_EXCEEDED"
	Timeout           Kind = "TIMEOUT"
	ServerError       Kind = "SERVER_ERROR"
)

// Error is an error with a client-facing kind and message.
// MessageID, when set, names a localized replacement for Message.
type Error struct {
	Kind      Kind
	Message   string
	MessageID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithMessageID sets the localized message ID and returns e
func (e *Error) WithMessageID(id string) *Error {
	e.MessageID = id
	return e
}

// HTTPStatus maps the kind to a response status
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Kind)
}

// StatusFor returns the HTTP status used for a kind
func StatusFor(kind Kind) int {
	switch kind {
	case BadRequest:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case RateLimitExceeded, QuotaExceeded:
		return http.StatusTooManyRequests
	case Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewBadRequest(format string, args ...interface{}) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func NewUnauthorized(message string) *Error {
	return New(Unauthorized, message)
}

func NewForbidden(message string) *Error {
	return New(Forbidden, message)
}

// As extracts an *Error from err, classifying unknown errors.
// Context deadlines and network timeouts become TIMEOUT, everything else SERVER_ERROR.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, "the model took too long to respond", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Wrap(Timeout, "the model took too long to respond", err)
	}
	return Wrap(ServerError, "internal server error", err)
}

// KindOf returns the kind of err
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return As(err).Kind
}
