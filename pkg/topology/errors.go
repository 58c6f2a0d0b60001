package topology

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrHostNotFound      = errors.New("host not found")
	ErrSubnetNotFound    = errors.New("subnet not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrRootUserNotFound  = errors.New("root user not found")
	ErrNoExternalSubnet  = errors.New("topology has no external subnet")
	ErrDanglingSubnetRef = errors.New("subnet connection references unknown subnet")
	ErrUnknownPathHost   = errors.New("attack path references unknown host")
	ErrDiscontinuousPath = errors.New("attack path has discontinuous steps")
	ErrNoAttackGraph     = errors.New("attack graph is not set")
	ErrMissingVuln       = errors.New("vulnerability is not set for edge")
)

// Error provides structured error information for topology operations.
// Validation failures always name the offending entity.
type Error struct {
	Op     string // operation that failed (e.g. "Validate", "ApplyVulnerabilities")
	Entity string // entity kind (e.g. "host", "subnet", "attack path")
	Name   string // entity name or id, if applicable
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s %q: %v", e.Op, e.Entity, e.Name, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(op, entity, name string, cause error) *Error {
	return &Error{Op: op, Entity: entity, Name: name, Cause: cause}
}
