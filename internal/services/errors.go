// Package services implements PlatformHub's business logic: account
// registration and login, request submission and visibility, and the review
// state machine. Handlers translate the sentinel errors below into HTTP
// status codes with errors.Is.
package services

import (
	"errors"
	"fmt"

	"github.com/platformhub/platformhub/internal/db/models"
)

// Error kinds
var (
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Caller-facing messages
const (
	MsgDuplicateUser    = "Username or email already registered"
	MsgBadCredentials   = "Incorrect username or password"
	MsgInvalidToken     = "Could not validate credentials"
	MsgRequestNotFound  = "Request not found"
	MsgUserNotFound     = "User not found"
	MsgNotAuthorized    = "Not authorized to view this request"
	MsgInsufficientRole = "Insufficient permissions"
	MsgInvalidAction    = "Action must be 'approved' or 'rejected'"
	MsgManifestNotReady = "Manifest not available"
	MsgInternalError    = "Internal server error"
	msgAlreadyTemplate  = "Request is already %s"
)

// Error is a classified failure carrying the message safe to show callers.
// errors.Is matches both its Kind and the wrapped cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func wrapError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func validationError(format string, args ...interface{}) *Error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

func alreadyError(status models.RequestStatus) *Error {
	return newError(ErrInvalidTransition, fmt.Sprintf(msgAlreadyTemplate, status))
}

// PublicMessage returns the message for err that may be shown to a caller.
// Unclassified errors yield the generic internal error text.
func PublicMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return MsgInternalError
}
