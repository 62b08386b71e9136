// Package identity carries the authenticated caller through request contexts.
package identity

import (
	"context"

	"github.com/google/uuid"
)

// Role classifies an account as a patient or a doctor.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Valid reports whether the role is one of the known account types.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

// Caller is the authenticated principal attached to a request.
type Caller struct {
	ID   uuid.UUID
	Role Role
}

type ctxKey string

const callerKey ctxKey = "docktorek.caller"

// WithCaller stores the caller in context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext extracts the caller if present.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	val := ctx.Value(callerKey)
	if val == nil {
		return Caller{}, false
	}
	c, ok := val.(Caller)
	return c, ok && c.ID != uuid.Nil
}
