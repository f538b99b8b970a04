package reliability

import (
	"context"
	"errors"
	"net"
	"strconv"
)

// StatusError is returned by HTTP-backed collaborators for non-2xx replies.
type StatusError struct {
	Backend string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	msg := e.Backend + " returned status " + strconv.Itoa(e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// FailureKind labels a backend failure for logs and metrics.
func FailureKind(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var se *StatusError
	if errors.As(err, &se) {
		if IsRetryableHTTPStatus(se.Status) {
			return "upstream_transient"
		}
		return "upstream_rejected"
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return "timeout"
		}
		return "network"
	}
	return "backend"
}
