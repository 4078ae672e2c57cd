// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - Unexported errors (err*): Use for internal package errors
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Platform lookup errors.
var (
	// ErrChannelNotFound indicates a channel could not be found or is not text based.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrMessageNotFound indicates a message could not be found.
	ErrMessageNotFound = errors.New("message not found")
)

// Client and configuration errors.
var (
	// ErrClientDisabled indicates a client or feature is disabled.
	ErrClientDisabled = errors.New("client disabled")

	// ErrMissingCredentials indicates credentials required by a client are not configured.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrScanDisabled indicates scanning is disabled for the community.
	ErrScanDisabled = errors.New("scanning disabled")

	// ErrRecentlyScanned indicates a manual scan of the same message ran recently.
	ErrRecentlyScanned = errors.New("recently scanned")
)

// Response and media errors.
var (
	// ErrEmptyResponse indicates an empty response was received.
	ErrEmptyResponse = errors.New("empty response")

	// ErrUnsupportedMedia indicates downloaded content is neither an image nor a video.
	ErrUnsupportedMedia = errors.New("unsupported media type")

	// ErrMediaRejected indicates a link could not be resolved to displayable media.
	ErrMediaRejected = errors.New("media rejected")
)

// Validation errors.
var (
	// ErrInvalidID indicates an invalid identifier.
	ErrInvalidID = errors.New("invalid id")
)

// Review workflow errors.
var (
	// ErrReviewInFlight indicates a reaction on the same review message is still being handled.
	ErrReviewInFlight = errors.New("review already in flight")

	// ErrNotModerator indicates the reacting user lacks moderator capability.
	ErrNotModerator = errors.New("user is not a moderator")
)
