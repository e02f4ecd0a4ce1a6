package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

type AppError struct {
	Code    string
	Message string
	Status  int
	Err     error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code string, message string, status int, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     err,
	}
}

func Unauthorized(message string, err error) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
		Status:  http.StatusUnauthorized,
		Err:     err,
	}
}

func Forbidden(message string, err error) *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Message: message,
		Status:  http.StatusForbidden,
		Err:     err,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// ConversationLocked signals that another admin already holds the handling
// lock for the room. Recoverable: the caller should re-fetch state.
func ConversationLocked(handledBy string) *AppError {
	return &AppError{
		Code:    "CONVERSATION_LOCKED",
		Message: "another admin is handling this conversation",
		Status:  http.StatusConflict,
		Err:     fmt.Errorf("conversation handled by %s", handledBy),
	}
}

// ConversationClosed signals a write into a closed conversation.
func ConversationClosed(room string) *AppError {
	return &AppError{
		Code:    "CONVERSATION_CLOSED",
		Message: "conversation is closed",
		Status:  http.StatusConflict,
		Err:     fmt.Errorf("conversation %s is closed", room),
	}
}

// AlreadyClosed is the idempotent no-op signal for closing a conversation
// that is already in the CLOSED state. Not a hard failure.
func AlreadyClosed(room string) *AppError {
	return &AppError{
		Code:    "ALREADY_CLOSED",
		Message: "conversation is already closed",
		Status:  http.StatusOK,
		Err:     fmt.Errorf("conversation %s already closed", room),
	}
}

// DuplicateConversation signals a creation-policy violation: an active
// conversation already exists for the same participants. The caller should
// route to the existing room instead.
func DuplicateConversation(room string) *AppError {
	return &AppError{
		Code:    "DUPLICATE_CONVERSATION",
		Message: "an active conversation already exists",
		Status:  http.StatusConflict,
		Err:     fmt.Errorf("active conversation %s already exists", room),
	}
}

func TooManyRequests(message string, waitTime time.Duration) *AppError {
	if waitTime > 0 {
		message = fmt.Sprintf("%s (retry in %s)", message, waitTime.Round(time.Second))
	}
	return &AppError{
		Code:    "TOO_MANY_REQUESTS",
		Message: message,
		Status:  http.StatusTooManyRequests,
		Err:     nil,
	}
}

func Is(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the stable reason code for an error, or INTERNAL_ERROR for
// anything that is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "INTERNAL_ERROR"
}
