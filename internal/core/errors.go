package core

import (
	"errors"

	"github.com/vovakirdan/lobbychat/internal/store"
)

// Error codes for domain errors.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeNotIdentified = "not_identified"
	ErrCodeStorageFault  = "storage_fault"
	ErrCodeRateLimited   = "rate_limited"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrAlreadyJoined  = errors.New("already joined")
	ErrNotIdentified  = errors.New("connection has no identity")
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

// toCoreError maps an operation error onto the code reported to the client.
func toCoreError(err error) *CoreError {
	switch {
	case errors.Is(err, ErrInvalidMessage):
		if errors.Is(err, store.ErrTimeOutOfRange) {
			return coreError(ErrCodeBadRequest, "createdAt must fall between 1678 and 2262")
		}
		return coreError(ErrCodeBadRequest, "message requires text and user")
	case errors.Is(err, ErrAlreadyJoined):
		return coreError(ErrCodeAlreadyJoined, "identity already established for this connection")
	case errors.Is(err, ErrNotIdentified):
		return coreError(ErrCodeNotIdentified, "send userJoined before sending messages")
	case errors.Is(err, store.ErrTimeout), errors.Is(err, store.ErrNotInserted):
		return coreError(ErrCodeStorageFault, "message could not be stored")
	case errors.Is(err, store.ErrDuplicate):
		return coreError(ErrCodeStorageFault, "record already exists")
	default:
		return coreError(ErrCodeStorageFault, "storage unavailable")
	}
}
