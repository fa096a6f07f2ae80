package domain

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures so callers can decide whether to retry.
type Kind int

const (
	KindUnknown Kind = iota
	KindIntentRejected
	KindTransport
	KindValidationFailed
	KindTimeout
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindIntentRejected:
		return "intent rejected"
	case KindTransport:
		return "transport"
	case KindValidationFailed:
		return "validation failed"
	case KindTimeout:
		return "timeout"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrIntentRejected   = &Error{Kind: KindIntentRejected}
	ErrTransport        = &Error{Kind: KindTransport}
	ErrValidationFailed = &Error{Kind: KindValidationFailed}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrCanceled         = &Error{Kind: KindCanceled}
)

type Error struct {
	Kind Kind
	Op   string
	Key  string
	Err  error
}

func NewError(kind Kind, op, key string, err error) *Error {
	return &Error{Kind: kind, Op: op, Key: key, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %s)", msg, e.Key)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Key == "" && t.Err == nil && t.Kind == e.Kind
}

// Retryable is true for failures where a fresh attempt may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindTransport || e.Kind == KindTimeout
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
