// Package arferr defines the error taxonomy shared by arf commands and the
// process exit codes each kind maps to.
package arferr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a user-facing failure.
type Kind string

const (
	KindRepositoryNotFound   Kind = "RepositoryNotFound"
	KindStorageUninitialized Kind = "StorageUninitialized"
	KindValidation           Kind = "ValidationError"
	KindMalformedRecord      Kind = "MalformedRecord"
	KindAmbiguousRef         Kind = "AmbiguousRef"
	KindRefNotFound          Kind = "RefNotFound"
	KindWriteConflict        Kind = "WriteConflict"
	KindStorage              Kind = "StorageError"
)

// Exit codes returned by the arf binary.
const (
	ExitOK                   = 0
	ExitUnknown              = 1
	ExitRepositoryNotFound   = 2
	ExitStorageUninitialized = 3
	ExitValidation           = 4
	ExitStorage              = 5
	ExitRef                  = 6
	ExitWriteConflict        = 7
)

// Error is a classified failure. Subject names the offending identifier
// (a ref, a filename, a field) so the message is actionable.
type Error struct {
	Kind    Kind
	Subject string
	Msg     string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Msg)
	if e.Subject != "" && !strings.Contains(e.Msg, e.Subject) {
		fmt.Fprintf(&b, " (%s)", e.Subject)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone: errors.Is(err, &Error{Kind: K}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Subject == "" || t.Subject == e.Subject)
}

// New creates a classified error.
func New(kind Kind, subject, msg string) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: msg}
}

// Wrap creates a classified error around a cause.
func Wrap(kind Kind, subject, msg string, err error) *Error {
	return &Error{Kind: kind, Subject: subject, Msg: msg, Err: err}
}

// Sentinels for errors.Is checks.
var (
	ErrRepositoryNotFound   = &Error{Kind: KindRepositoryNotFound}
	ErrStorageUninitialized = &Error{Kind: KindStorageUninitialized}
	ErrValidation           = &Error{Kind: KindValidation}
	ErrMalformedRecord      = &Error{Kind: KindMalformedRecord}
	ErrAmbiguousRef         = &Error{Kind: KindAmbiguousRef}
	ErrRefNotFound          = &Error{Kind: KindRefNotFound}
	ErrWriteConflict        = &Error{Kind: KindWriteConflict}
	ErrStorage              = &Error{Kind: KindStorage}
)

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	kind, ok := KindOf(err)
	if !ok {
		return ExitUnknown
	}
	switch kind {
	case KindRepositoryNotFound:
		return ExitRepositoryNotFound
	case KindStorageUninitialized:
		return ExitStorageUninitialized
	case KindValidation:
		return ExitValidation
	case KindStorage, KindMalformedRecord:
		return ExitStorage
	case KindAmbiguousRef, KindRefNotFound:
		return ExitRef
	case KindWriteConflict:
		return ExitWriteConflict
	default:
		return ExitUnknown
	}
}

// Uninitialized returns the StorageUninitialized error for a storage root.
func Uninitialized(root string) *Error {
	return New(KindStorageUninitialized, root,
		fmt.Sprintf("ARF not initialized: %s does not exist. Run 'arf init' first", root))
}
