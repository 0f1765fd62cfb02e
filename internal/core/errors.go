package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeEmptyMessage   = "empty_message"
	ErrCodeMessageTooLong = "message_too_long"
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeForbidden      = "forbidden"
	ErrCodeNoConversation = "no_conversation"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeUnsupported    = "unsupported_protocol"
	ErrCodeInternal       = "internal"
)

var (
	// ErrEmptyMessage rejects text that is empty after trimming whitespace.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrMessageTooLong rejects text over the configured maximum length.
	ErrMessageTooLong = errors.New("message text too long")
	// ErrInvalidID rejects conversation or message ids that are not a single path segment.
	ErrInvalidID = errors.New("invalid id")
	// ErrForbidden is returned for admin-only operations attempted by a visitor.
	ErrForbidden = errors.New("forbidden")
	// ErrNoConversation is returned when an operation needs a selected conversation.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrSessionClosed is returned by a session after Close.
	ErrSessionClosed = errors.New("session closed")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

// AsCoreError maps domain errors onto wire codes. Unknown errors are reported
// as unavailable: they come from the store and leave state unchanged.
func AsCoreError(err error) *CoreError {
	var ce *CoreError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, ErrEmptyMessage):
		return coreError(ErrCodeEmptyMessage, err.Error())
	case errors.Is(err, ErrMessageTooLong):
		return coreError(ErrCodeMessageTooLong, err.Error())
	case errors.Is(err, ErrInvalidID):
		return coreError(ErrCodeBadRequest, err.Error())
	case errors.Is(err, ErrForbidden):
		return coreError(ErrCodeForbidden, err.Error())
	case errors.Is(err, ErrNoConversation):
		return coreError(ErrCodeNoConversation, err.Error())
	default:
		return coreError(ErrCodeUnavailable, err.Error())
	}
}
