package core

import "fmt"

// Error codes for domain errors.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeStorage      = "storage_error"
	ErrCodePayload      = "payload_error"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeRateLimited  = "rate_limited"
	ErrCodeUnknownEvent = "unknown_event"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// NewError builds a CoreError for the transport layer.
func NewError(code, msg string) *CoreError {
	return coreError(code, msg)
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}

func badRequest(msg string) *CoreError {
	return coreError(ErrCodeBadRequest, msg)
}

// StorageError wraps a backend failure surfaced by the persistence gateway.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
