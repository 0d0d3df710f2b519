package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every diagnostic wraps exactly one of these, so callers can
// test with errors.Is on either an *Error or an ErrorList.
var (
	ErrSyntax               = errors.New("syntax error")
	ErrUndeclaredIdentifier = errors.New("undeclared identifier")
	ErrDuplicateDeclaration = errors.New("duplicate declaration")
	ErrTypeMismatch         = errors.New("type mismatch")
	ErrInvalidControlFlow   = errors.New("invalid control flow")
	ErrUnresolvedLabel      = errors.New("unresolved label")
	ErrUnsupportedConstruct = errors.New("unsupported construct")
)

// Error is a positioned compile diagnostic.
type Error struct {
	Kind error
	Pos  Position
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d, column %d: %s: %s", e.Pos.Line, e.Pos.Column, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

// ErrorList accumulates the diagnostics of one compilation unit.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	msgs := make([]string, len(l))
	for i, e := range l {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d errors:\n%s", len(l), strings.Join(msgs, "\n"))
}

// Unwrap exposes every diagnostic to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Err returns nil for an empty list and the list otherwise.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}

func (l *ErrorList) add(kind error, pos Position, format string, args ...any) {
	*l = append(*l, &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)})
}

// Warning is a non-fatal diagnostic.
type Warning struct {
	Pos Position
	Msg string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning: line %d, column %d: %s", w.Pos.Line, w.Pos.Column, w.Msg)
}
