// Package errors provides the structured error kinds used across the
// application. Preferred over bare fmt.Errorf strings so callers can branch
// with errors.As and logs carry the failing operation.
package errors

import (
	"errors"
	"fmt"
)

// ValidationError indicates invalid input, config or state supplied by a caller.
type ValidationError struct {
	Op  string // where it happened (package.Function)
	Msg string
	Err error // underlying cause (optional)
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("validation: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("validation: %s: %s", e.Op, e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func NewValidation(op, msg string, err error) error {
	return &ValidationError{Op: op, Msg: msg, Err: err}
}

// DBError represents database access or statement failures. These are fatal
// to a pipeline run: trackers never swallow them.
type DBError struct {
	Op  string
	Msg string
	Err error
}

func (e *DBError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("db: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("db: %s: %s", e.Op, e.Msg)
}

func (e *DBError) Unwrap() error { return e.Err }

func NewDB(op, msg string, err error) error { return &DBError{Op: op, Msg: msg, Err: err} }

// ExternalAPIError represents failures of remote services (Clova, Places).
// Mostly informational: the clients convert these to degraded sentinels
// before they cross the pipeline boundary.
type ExternalAPIError struct {
	Op     string
	System string // "clova" / "places"
	Msg    string
	Err    error
}

func (e *ExternalAPIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	sys := e.System
	if sys == "" {
		sys = "external"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", sys, e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", sys, e.Op, e.Msg)
}

func (e *ExternalAPIError) Unwrap() error { return e.Err }

func NewExternal(op, system, msg string, err error) error {
	return &ExternalAPIError{Op: op, System: system, Msg: msg, Err: err}
}

// BizError is for domain failures that are not programmer bugs, e.g. an
// analysis request with no members.
type BizError struct {
	Op  string
	Msg string
	Err error
}

func (e *BizError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("biz: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("biz: %s: %s", e.Op, e.Msg)
}

func (e *BizError) Unwrap() error { return e.Err }

func NewBiz(op, msg string, err error) error { return &BizError{Op: op, Msg: msg, Err: err} }

// Kind predicates, so call sites don't repeat errors.As boilerplate.

func IsValidation(err error) bool { var t *ValidationError; return errors.As(err, &t) }
func IsDB(err error) bool         { var t *DBError; return errors.As(err, &t) }
func IsExternal(err error) bool   { var t *ExternalAPIError; return errors.As(err, &t) }
func IsBiz(err error) bool        { var t *BizError; return errors.As(err, &t) }
