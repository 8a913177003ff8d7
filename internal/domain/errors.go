package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can branch on its category
// without inspecting messages.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNotFound
	KindFormat
	KindSourceUnavailable
	KindDuplicate
	KindInvalidState
	KindTransient
	KindPermanent
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindFormat:
		return "format"
	case KindSourceUnavailable:
		return "source_unavailable"
	case KindDuplicate:
		return "duplicate"
	case KindInvalidState:
		return "invalid_state"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error is a failure tagged with an ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Msg
	case e.Msg == "":
		return e.Err.Error()
	default:
		return e.Msg + ": " + e.Err.Error()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Errorf builds a tagged error. The format supports %w.
func Errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with kind, keeping it in the chain.
func Wrap(kind ErrorKind, err error, msg string) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func NotFound(entity, id string) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %s not found", entity, id)}
}

func Duplicate(entity, key string) error {
	return &Error{Kind: KindDuplicate, Msg: fmt.Sprintf("%s %s already exists", entity, key)}
}
