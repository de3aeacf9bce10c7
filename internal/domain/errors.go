package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInput          ErrorKind = "input"
	KindAuth           ErrorKind = "unauthenticated"
	KindPermission     ErrorKind = "permission_denied"
	KindNotFound       ErrorKind = "not_found"
	KindPrecondition   ErrorKind = "failed_precondition"
	KindGateway        ErrorKind = "gateway"
	KindConflict       ErrorKind = "conflict"
	KindBusy           ErrorKind = "busy"
	KindReconciliation ErrorKind = "reconciliation_required"
	KindInternal       ErrorKind = "internal"
)

// Reasons attached to slot rejections.
const (
	ReasonPastSlot     = "past_slot"
	ReasonOutsideHours = "outside_hours"
	ReasonConflict     = "conflict"
	ReasonInvalidRange = "invalid_range"
	ReasonStaleStatus  = "stale_status"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// ReasonOf returns the slot rejection reason carried by err, if any.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func InputError(format string, args ...any) *Error {
	return &Error{Kind: KindInput, Message: fmt.Sprintf(format, args...)}
}

func AuthError(msg string) *Error {
	return &Error{Kind: KindAuth, Message: msg}
}

func PermissionError(msg string) *Error {
	return &Error{Kind: KindPermission, Message: msg}
}

func NotFoundError(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func PreconditionError(format string, args ...any) *Error {
	return &Error{Kind: KindPrecondition, Message: fmt.Sprintf(format, args...)}
}

func GatewayError(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Message: msg, Err: err}
}

func ConflictError(msg, reason string) *Error {
	return &Error{Kind: KindConflict, Message: msg, Reason: reason}
}

func BusyError(bookingID string) *Error {
	return &Error{Kind: KindBusy, Message: fmt.Sprintf("another operation on booking %s is in progress", bookingID)}
}

func ReconciliationError(msg string, err error) *Error {
	return &Error{Kind: KindReconciliation, Message: msg, Err: err}
}
