package util

import (
	"errors"
	"fmt"
)

// ErrorKind classifies expected, recoverable failures for the HTTP boundary.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not_found"
	KindForbidden  ErrorKind = "forbidden"
	KindConflict   ErrorKind = "conflict"
	KindValidation ErrorKind = "validation"
	KindInternal   ErrorKind = "internal"
)

// AppError carries a kind and a reason suitable for direct display.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError of the same kind, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) error   { return newError(KindNotFound, format, args...) }
func Forbiddenf(format string, args ...any) error  { return newError(KindForbidden, format, args...) }
func Conflictf(format string, args ...any) error   { return newError(KindConflict, format, args...) }
func Validationf(format string, args ...any) error { return newError(KindValidation, format, args...) }

// Internal wraps a storage or infrastructure failure.
func Internal(msg string, err error) error {
	return &AppError{Kind: KindInternal, Message: msg, Err: err}
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err is an AppError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

var (
	ErrUserNotFound      = &AppError{Kind: KindNotFound, Message: "user not found"}
	ErrClubNotFound      = &AppError{Kind: KindNotFound, Message: "club not found"}
	ErrThreadNotFound    = &AppError{Kind: KindNotFound, Message: "thread not found"}
	ErrMessageNotFound   = &AppError{Kind: KindNotFound, Message: "message not found"}
	ErrCourseNotFound    = &AppError{Kind: KindNotFound, Message: "class not found"}
	ErrNotMember         = &AppError{Kind: KindNotFound, Message: "user is not a member of this club"}
	ErrRequestNotFound   = &AppError{Kind: KindNotFound, Message: "friend request not found or already handled"}
	ErrInviteNotFound    = &AppError{Kind: KindNotFound, Message: "invite not found or already handled"}
	ErrDuplicateRequest  = &AppError{Kind: KindConflict, Message: "a friend request between these users already exists"}
	ErrInvalidRole       = &AppError{Kind: KindValidation, Message: "role must be one of member, moderator, admin"}
	ErrEmptyMessage      = &AppError{Kind: KindValidation, Message: "message body must not be empty"}
	ErrTooFewParticipant = &AppError{Kind: KindValidation, Message: "a thread requires at least two distinct participants"}
)
