package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient_external"
	default:
		return "internal"
	}
}

// Error is a classified service failure.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinel kind errors such as ErrValidation.
func (e *Error) Is(target error) bool {
	var k kindSentinel
	if errors.As(target, &k) {
		return Kind(k) == e.Kind
	}
	return false
}

type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

var (
	ErrValidation   error = kindSentinel(KindValidation)
	ErrNotFound     error = kindSentinel(KindNotFound)
	ErrUnauthorized error = kindSentinel(KindUnauthorized)
	ErrForbidden    error = kindSentinel(KindForbidden)
	ErrTransient    error = kindSentinel(KindTransient)

	// ErrDuplicateEntry is returned by LedgerService.Append when the
	// (account, booking, subtype) key is already taken.
	ErrDuplicateEntry = &Error{Kind: KindValidation, Op: "ledger append", Msg: "duplicate entry for account, booking and subtype"}
)

func validationError(op, msg string) error {
	return &Error{Kind: KindValidation, Op: op, Msg: msg}
}

func notFoundError(op, msg string, err error) error {
	return &Error{Kind: KindNotFound, Op: op, Msg: msg, Err: err}
}

// KindOf extracts the Kind of err, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
