// Package errors defines the engine's typed error conditions and the mapping
// used at the transport boundary. Scoring and ranking are pure and cannot
// fail; everything that can is classified into one of these kinds so callers
// can tell "upgrade for more likes" apart from "action not permitted".
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"
)

type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindNotFound
	KindQuotaExceeded
	KindAlreadyBlocked
	KindAlreadyMatched
	KindConcurrentConflict
)

// Error is the engine's typed error. QuotaExceeded carries the remaining
// budget (always 0) and the next reset instant so clients can render a
// countdown.
type Error struct {
	Kind      Kind
	Msg       string
	Remaining int
	ResetAt   time.Time
}

func (e *Error) Error() string { return e.Msg }

// Is lets errors.Is match on kind via the sentinel helpers below.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

func InvalidInput(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func QuotaExceeded(action string, resetAt time.Time) *Error {
	return &Error{
		Kind:    KindQuotaExceeded,
		Msg:     fmt.Sprintf("daily %s quota exhausted", action),
		ResetAt: resetAt,
	}
}

func AlreadyBlocked() *Error {
	return &Error{Kind: KindAlreadyBlocked, Msg: "pair is blocked"}
}

func AlreadyMatched() *Error {
	return &Error{Kind: KindAlreadyMatched, Msg: "pair is already matched"}
}

func ConcurrentConflict(msg string) *Error {
	return &Error{Kind: KindConcurrentConflict, Msg: msg}
}

// As extracts the typed error when present.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf classifies any error, folding infra errors into engine kinds.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindConcurrentConflict
	default:
		return KindInternal
	}
}

// HTTPStatus maps an error to the status returned by the HTTP handlers.
// Quota exhaustion and blocked pairs get distinct statuses so the client can
// show the right prompt.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindAlreadyBlocked, KindAlreadyMatched:
		return http.StatusConflict
	case KindConcurrentConflict:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
