// Package outcome defines the recoverable failure kinds returned by every
// player-facing operation, plus the fatal invariant check used when internal
// state would otherwise go out of bounds.
package outcome

import (
	"errors"
	"fmt"
)

// Kind names a recoverable failure. Values are stable and agent-facing.
type Kind string

const (
	KindInsufficientResources    Kind = "InsufficientResources"
	KindInsufficientFunds        Kind = "InsufficientFunds"
	KindInsufficientSpace        Kind = "InsufficientSpace"
	KindInsufficientAdults       Kind = "InsufficientAdults"
	KindInsufficientBreedingItem Kind = "InsufficientBreedingItem"
	KindNotFound                 Kind = "NotFound"
	KindNotOpen                  Kind = "NotOpen"
	KindExpired                  Kind = "Expired"
	KindInvalidFarmOrCrop        Kind = "InvalidFarmOrCrop"
	KindInvalidRequest           Kind = "InvalidRequest"
	KindRateLimited              Kind = "RateLimited"
)

// Error is a recoverable domain failure.
type Error struct {
	Kind   Kind
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of detail.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInsufficientResources    = &Error{Kind: KindInsufficientResources}
	ErrInsufficientFunds        = &Error{Kind: KindInsufficientFunds}
	ErrInsufficientSpace        = &Error{Kind: KindInsufficientSpace}
	ErrInsufficientAdults       = &Error{Kind: KindInsufficientAdults}
	ErrInsufficientBreedingItem = &Error{Kind: KindInsufficientBreedingItem}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrNotOpen                  = &Error{Kind: KindNotOpen}
	ErrExpired                  = &Error{Kind: KindExpired}
	ErrInvalidFarmOrCrop        = &Error{Kind: KindInvalidFarmOrCrop}
	ErrInvalidRequest           = &Error{Kind: KindInvalidRequest}
	ErrRateLimited              = &Error{Kind: KindRateLimited}
)

// Fail builds an *Error of the given kind with a formatted detail.
func Fail(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind, or "" when err is nil or not a domain error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Result is the agent-facing {success, reason | value} shape.
type Result[T any] struct {
	Success bool   `json:"success"`
	Reason  Kind   `json:"reason,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Value   T      `json:"value,omitempty"`
}

// From converts a (value, error) pair into a Result.
func From[T any](v T, err error) Result[T] {
	if err == nil {
		return Result[T]{Success: true, Value: v}
	}
	r := Result[T]{Reason: KindOf(err), Detail: err.Error()}
	return r
}

// Invariant panics when cond is false. It guards states that correct
// check-before-mutate ordering makes unreachable.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic("invariant violated: " + fmt.Sprintf(format, args...))
	}
}
