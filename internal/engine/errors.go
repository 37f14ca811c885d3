package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeUnknownReuse indicates an unrecognized reuse strategy name.
	CodeUnknownReuse ErrorCode = "UNKNOWN_REUSE"

	// CodeRecipeRejected indicates a recipe that failed to compile or install.
	CodeRecipeRejected ErrorCode = "RECIPE_REJECTED"

	// CodePolicyRejected indicates a security config that failed to compile
	// or install.
	CodePolicyRejected ErrorCode = "POLICY_REJECTED"

	// CodeUnknownRelation indicates a reference to an undeclared relation.
	CodeUnknownRelation ErrorCode = "UNKNOWN_RELATION"

	// CodeInvalidContext indicates a tenant context the engine cannot use.
	CodeInvalidContext ErrorCode = "INVALID_CONTEXT"

	// CodeUniverseConflict indicates a second, different context for a
	// tenant id that already has a universe.
	CodeUniverseConflict ErrorCode = "UNIVERSE_CONFLICT"

	// CodeUnknownNode indicates a node ID that does not exist.
	CodeUnknownNode ErrorCode = "UNKNOWN_NODE"

	// CodeWriteRejected indicates a row an input could not accept.
	CodeWriteRejected ErrorCode = "WRITE_REJECTED"

	// CodeClosed indicates use of a closed controller.
	CodeClosed ErrorCode = "CLOSED"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrUnknownReuse     = &Error{Code: CodeUnknownReuse}
	ErrRecipeRejected   = &Error{Code: CodeRecipeRejected}
	ErrPolicyRejected   = &Error{Code: CodePolicyRejected}
	ErrUnknownRelation  = &Error{Code: CodeUnknownRelation}
	ErrInvalidContext   = &Error{Code: CodeInvalidContext}
	ErrUniverseConflict = &Error{Code: CodeUniverseConflict}
	ErrUnknownNode      = &Error{Code: CodeUnknownNode}
	ErrWriteRejected    = &Error{Code: CodeWriteRejected}
	ErrClosed           = &Error{Code: CodeClosed}
)

// Error is an engine error with a category code.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Name is the relation, endpoint or tenant the error concerns.
	Name string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Name != "" {
		msg += fmt.Sprintf(" (%s)", e.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

func newError(code ErrorCode, name string, err error, format string, args ...any) *Error {
	return &Error{Code: code, Name: name, Err: err, Message: fmt.Sprintf(format, args...)}
}

// IsUniverseConflict returns true if err is a universe conflict.
// Uses errors.As to handle wrapped errors.
func IsUniverseConflict(err error) bool {
	return hasCode(err, CodeUniverseConflict)
}

// IsRejected returns true if err rejected a recipe or security config.
func IsRejected(err error) bool {
	return hasCode(err, CodeRecipeRejected) || hasCode(err, CodePolicyRejected) || hasCode(err, CodeUnknownRelation)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
