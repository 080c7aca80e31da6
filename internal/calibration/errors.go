// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package calibration

import (
	"errors"
	"fmt"
)

// Kind classifies a calibration failure.
type Kind int

const (
	KindIO Kind = iota + 1
	KindFormat
	KindData
	KindNumeric
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io error"
	case KindFormat:
		return "format error"
	case KindData:
		return "data error"
	case KindNumeric:
		return "numeric error"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is; an *Error matches the one of its kind.
var (
	ErrIO      = errors.New("io error")
	ErrFormat  = errors.New("format error")
	ErrData    = errors.New("data error")
	ErrNumeric = errors.New("numeric error")
)

// Error is the single failure type returned by Run and the loaders it uses.
type Error struct {
	Kind Kind
	Op   string // stage that failed, e.g. "pass 2"
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindIO
	case ErrFormat:
		return e.Kind == KindFormat
	case ErrData:
		return e.Kind == KindData
	case ErrNumeric:
		return e.Kind == KindNumeric
	}
	return false
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of a calibration error, or 0 when err is not one.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
