package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the engine's error taxonomy. Callers branch on these
// with errors.Is; specific operations wrap them with the offending
// tenant/kind/identifier so no error surfaces as a bare string.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrConflict      = errors.New("revision conflict")
	ErrUnavailable   = errors.New("store unavailable")
	ErrTokenInvalid  = errors.New("token invalid")
	ErrTokenExpired  = errors.New("token expired")
	ErrAlreadyUsed   = errors.New("item already used")
)

// ValidationError reports the fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, ", ")
}

// UnauthorizedError is returned when an actor lacks the required capability
// on a tenant.
type UnauthorizedError struct {
	TenantID   string
	Email      string
	Capability Permission
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %s lacks %s on tenant %s", e.Email, e.Capability, e.TenantID)
}
