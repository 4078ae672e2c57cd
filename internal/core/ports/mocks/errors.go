package mocks

import "errors"

var (
	// ErrMessageNotFound is returned when a message doesn't exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrChannelUnavailable is returned for channels marked unreachable.
	ErrChannelUnavailable = errors.New("channel unavailable")
)
