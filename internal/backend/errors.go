package backend

import (
	"errors"
	"fmt"
)

// LoginStep names the stage of the login protocol that failed.
type LoginStep string

const (
	// StepUniverse is the universe creation request.
	StepUniverse LoginStep = "universe"

	// StepResolve is the lookup of the tenant's context input.
	StepResolve LoginStep = "resolve"

	// StepWrite is the context row write.
	StepWrite LoginStep = "write"
)

// ErrUnknownInput is returned when a named input does not exist. A
// resolve-step LoginError wraps it when the engine has no UserContext_<id>
// input after creating the universe.
var ErrUnknownInput = errors.New("input not found")

// LoginError is a per-tenant login failure. The driver logs it and moves on
// to the next tenant.
type LoginError struct {
	TenantID string
	Step     LoginStep
	Err      error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login %s: %s: %v", e.TenantID, e.Step, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

// IsLoginError reports whether err is a per-tenant login failure.
func IsLoginError(err error) bool {
	var le *LoginError
	return errors.As(err, &le)
}
