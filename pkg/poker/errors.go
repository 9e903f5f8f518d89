package poker

import (
	"errors"
	"fmt"
)

// ErrorKind is a machine-readable classification for engine errors. Callers
// branch on the kind; the message is for operators only.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NotFound"
	KindForbidden           ErrorKind = "Forbidden"
	KindInvalidState        ErrorKind = "InvalidState"
	KindWrongTurn           ErrorKind = "WrongTurn"
	KindInvalidRaise        ErrorKind = "InvalidRaise"
	KindDuplicateCard       ErrorKind = "DuplicateCard"
	KindInsufficientBalance ErrorKind = "InsufficientBalance"
	KindTableFull           ErrorKind = "TableFull"
	KindJoined              ErrorKind = "Joined"
	KindConservationError   ErrorKind = "ConservationError"
	KindInvalidBarcode      ErrorKind = "InvalidBarcode"
	KindDeviceMisconfigured ErrorKind = "DeviceMisconfigured"
	KindStoreConflict       ErrorKind = "StoreConflict"
)

// Error carries an ErrorKind alongside the human-readable message.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a kinded error with a formatted message.
func E(kind ErrorKind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind ErrorKind, err error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the ErrorKind carried by err, or "" if err is not a kinded
// engine error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether the coordinator may retry the operation.
func Retryable(err error) bool {
	return IsKind(err, KindStoreConflict)
}
