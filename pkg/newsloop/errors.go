package newsloop

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a non-2xx response from the Newsloop API.
//
// The backend does not return a structured error body, so Error carries
// the HTTP status and whatever text the server sent. It implements error,
// and provides additional methods for retry logic.
type Error struct {
	StatusCode int    // HTTP status code
	Status     string // HTTP status line text
	Body       string // Response body, truncated
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("newsloop: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("newsloop: status %d", e.StatusCode)
}

// Is checks if the target error is a Newsloop error with the same status.
//
// This allows errors.Is() to work with *Error types.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.StatusCode == t.StatusCode
}

// Temporary returns true if the request may succeed when retried.
//
// Server errors (5xx) and 429 Too Many Requests are considered temporary.
func (e *Error) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Predefined errors for common cases.
var (
	// ErrUnauthorized matches any 401 response via errors.Is.
	ErrUnauthorized = &Error{StatusCode: http.StatusUnauthorized}

	// ErrInvalidResponse is returned when a response body does not have
	// the shape the endpoint is documented to return.
	ErrInvalidResponse = errors.New("newsloop: invalid response")

	// ErrInvalidRequest is returned when request arguments fail validation
	// before anything is sent.
	ErrInvalidRequest = errors.New("newsloop: invalid request")

	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("newsloop: invalid configuration")
)

// IsStatusError reports whether err carries an HTTP status from the API,
// as opposed to a transport or decoding failure.
func IsStatusError(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr)
}
