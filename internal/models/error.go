package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Unknown user and wrong password both map to ErrInvalidCredentials
	// so callers cannot enumerate usernames.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ThrottledError reports that an account is locked out after repeated
// failed login attempts.
type ThrottledError struct {
	MinutesRemaining int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many failed logins, try again in %d minutes", e.MinutesRemaining)
}
