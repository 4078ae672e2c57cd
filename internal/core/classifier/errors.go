package classifier

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is wrapped by RequestError when the service rejected the token.
	ErrForbidden = errors.New("classifier rejected authorization")

	// ErrRequestFailed is wrapped by RequestError for every other non-success status.
	ErrRequestFailed = errors.New("classifier request failed")

	// ErrInvalidPayload indicates the classifier answered with something that is not a JSON object.
	ErrInvalidPayload = errors.New("invalid classifier payload")
)

const errBodyReadLimit = 2048

// RequestError is a non-success classifier response.
type RequestError struct {
	Endpoint string
	Status   int
	Body     string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("classifier %s: status %d", e.Endpoint, e.Status)
	}

	return fmt.Sprintf("classifier %s: status %d, body: %s", e.Endpoint, e.Status, e.Body)
}

func (e *RequestError) Unwrap() error {
	if e.Status == statusForbidden {
		return ErrForbidden
	}

	return ErrRequestFailed
}
