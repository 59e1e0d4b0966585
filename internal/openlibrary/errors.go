package openlibrary

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrNoConnection means the catalog host could not be reached.
	ErrNoConnection = errors.New("no connection to catalog")
	// ErrTimeout means the request did not complete in time.
	ErrTimeout = errors.New("catalog request timed out")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// DecodeError is returned when a response body does not have the expected
// shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "decode response: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrNoConnection, err)
	}
	return err
}

// Describe maps a catalog error to a message suitable for end users. known
// is false when the error is not one of the catalog failure kinds.
func Describe(err error) (msg string, known bool) {
	var statusErr *StatusError
	var decodeErr *DecodeError

	switch {
	case err == nil:
		return "", true
	case errors.Is(err, ErrNoConnection):
		return "No internet connection", true
	case errors.Is(err, ErrTimeout):
		return "Request timed out", true
	case errors.As(err, &statusErr):
		return fmt.Sprintf("HTTP %d: %s", statusErr.Code, statusErr.Status), true
	case errors.As(err, &decodeErr):
		return "Unexpected response from catalog", true
	case errors.Is(err, context.Canceled):
		return "Request cancelled", true
	default:
		return err.Error(), false
	}
}

// UserMessage is Describe with a generic prefix for unclassified errors.
func UserMessage(err error) string {
	msg, known := Describe(err)
	if !known {
		return "Failed: " + msg
	}
	return msg
}
