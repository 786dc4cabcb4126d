// Package apperr carries the application error taxonomy. Every pipeline
// rejection is an *Error with a Kind, optional field context, and a
// human-readable message; the HTTP layer maps kinds onto status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind identifies the failure class of an application error.
type Kind int

const (
	KindUnknown Kind = iota
	KindMissingField
	KindTypeMismatch
	KindInvalidTimeRange
	KindMalformedTimestamp
	KindInvalidCapacity
	KindCapacityExceeded
	KindLocationNotFound
	KindRoomNotFound
	KindUserNotFound
	KindEventNotFound
	KindTicketNotFound
	KindUnauthorized
	KindInvalidGroup
	KindInvalidTag
	KindRoomConflict
	KindEventFull
	KindDuplicateEmail
	KindNotTicketOwner
	KindInvalidCode
	KindSchemaViolation
	KindConflict
	KindTimeout
	KindStoreFault
)

var kindNames = map[Kind]string{
	KindUnknown:            "Unknown",
	KindMissingField:       "MissingField",
	KindTypeMismatch:       "TypeMismatch",
	KindInvalidTimeRange:   "InvalidTimeRange",
	KindMalformedTimestamp: "MalformedTimestamp",
	KindInvalidCapacity:    "InvalidCapacity",
	KindCapacityExceeded:   "CapacityExceeded",
	KindLocationNotFound:   "LocationNotFound",
	KindRoomNotFound:       "RoomNotFound",
	KindUserNotFound:       "UserNotFound",
	KindEventNotFound:      "EventNotFound",
	KindTicketNotFound:     "TicketNotFound",
	KindUnauthorized:       "Unauthorized",
	KindInvalidGroup:       "InvalidGroup",
	KindInvalidTag:         "InvalidTag",
	KindRoomConflict:       "RoomConflict",
	KindEventFull:          "EventFull",
	KindDuplicateEmail:     "DuplicateEmail",
	KindNotTicketOwner:     "NotTicketOwner",
	KindInvalidCode:        "InvalidCode",
	KindSchemaViolation:    "SchemaViolation",
	KindConflict:           "Conflict",
	KindTimeout:            "Timeout",
	KindStoreFault:         "StoreFault",
}

// String returns the taxonomy name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "Unknown"
}

// Class is the caller-visible status classification of a kind.
type Class int

const (
	ClassBadInput Class = iota
	ClassNotFound
	ClassForbidden
	ClassConflict
	ClassTimeout
	ClassServerFault
)

// Class maps a kind onto its status classification.
func (k Kind) Class() Class {
	switch k {
	case KindLocationNotFound, KindRoomNotFound, KindUserNotFound, KindEventNotFound, KindTicketNotFound:
		return ClassNotFound
	case KindUnauthorized, KindNotTicketOwner, KindInvalidCode:
		return ClassForbidden
	case KindRoomConflict, KindEventFull, KindDuplicateEmail, KindConflict:
		return ClassConflict
	case KindTimeout:
		return ClassTimeout
	case KindStoreFault, KindUnknown:
		return ClassServerFault
	default:
		return ClassBadInput
	}
}

// Error is a classified application error with optional field context.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind with field context.
func New(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, field, format string, args ...any) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or KindUnknown if err carries none.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// Retryable reports whether the error class may be retried with the same
// idempotency key. Only optimistic-concurrency clashes and timeouts qualify.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindConflict, KindTimeout:
		return true
	}
	return false
}

// Public returns the message suitable for API callers. Store faults and
// timeouts stay generic so storage internals do not leak.
func Public(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		return "internal server error"
	}
	switch ae.Kind {
	case KindStoreFault, KindUnknown:
		return "internal server error"
	case KindTimeout:
		return "request timed out"
	}
	return ae.Message
}
