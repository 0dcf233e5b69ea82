package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error so the boundary layer can map it to a
// status code without inspecting error strings.
type Kind string

const (
	// KindNotFound means the requested entity or identity does not exist.
	KindNotFound Kind = "NotFound"

	// KindForbidden means the caller is authenticated but not authorized.
	KindForbidden Kind = "Forbidden"

	// KindInvalidCredentials means authentication failed. It is intentionally
	// non-specific so callers cannot distinguish an unknown identity from a
	// wrong secret.
	KindInvalidCredentials Kind = "InvalidCredentials"

	// KindDuplicateIdentity means the identity is already registered.
	KindDuplicateIdentity Kind = "DuplicateIdentity"

	// KindMalformed means a token failed signature or structural checks.
	KindMalformed Kind = "Malformed"

	// KindExpired means a token is past its expiry.
	KindExpired Kind = "Expired"

	// KindValidation means the input failed domain validation.
	KindValidation Kind = "ValidationError"

	// KindConflict means an optimistic update lost to a concurrent writer
	// and retries were exhausted.
	KindConflict Kind = "Conflict"

	// KindStorage means the backing store failed unexpectedly.
	KindStorage Kind = "StorageError"
)

// Error is a tagged domain error surfaced to the boundary layer.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a domain error with the given kind and message.
func E(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds a domain error wrapping a cause.
func Errorf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf extracts the kind from err. Errors that are not domain errors are
// classified as storage failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorage
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
