package reliability

import (
	"errors"
	"net/http"
)

// Category is the client-facing failure class of a request.
type Category string

const (
	NotReady       Category = "not_ready"
	InvalidInput   Category = "invalid_input"
	BackendFailure Category = "backend_failure"
	RateLimited    Category = "rate_limited"
	Canceled       Category = "canceled"
	Unexpected     Category = "unexpected"
)

// StatusClientClosedRequest reports a request the caller abandoned mid-flight.
const StatusClientClosedRequest = 499

// RateLimitDetail is the fixed localized message for rejected bursts.
const RateLimitDetail = "Rate limit exceeded. Tafadhali jaribu tena baada ya muda mfupi."

// Error carries a category, a human-readable detail and an optional cause.
type Error struct {
	Category Category
	Detail   string
	// Status overrides the category default when non-zero.
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Category) + ": " + e.Detail + ": " + e.Err.Error()
	}
	return string(e.Category) + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Err }

func New(category Category, detail string) *Error {
	return &Error{Category: category, Detail: detail}
}

func Wrap(category Category, detail string, err error) *Error {
	return &Error{Category: category, Detail: detail, Err: err}
}

// CategoryOf returns the category of err, or Unexpected when err carries none.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return Unexpected
}

// DetailOf returns the client-safe detail for err.
func DetailOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Detail != "" {
		return e.Detail
	}
	return "Internal server error"
}

// HTTPStatus maps err to the status code surfaced to the caller.
func HTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	switch CategoryOf(err) {
	case NotReady:
		return http.StatusServiceUnavailable
	case InvalidInput:
		return http.StatusUnprocessableEntity
	case RateLimited:
		return http.StatusTooManyRequests
	case Canceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
