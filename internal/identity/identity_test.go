package identity

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestCallerRoundTrip(t *testing.T) {
	caller := Caller{ID: uuid.New(), Role: RoleDoctor}
	ctx := WithCaller(context.Background(), caller)

	got, ok := CallerFromContext(ctx)
	if !ok {
		t.Fatal("expected caller in context")
	}
	if got.ID != caller.ID || got.Role != caller.Role {
		t.Fatalf("got %+v, want %+v", got, caller)
	}
}

func TestCallerMissing(t *testing.T) {
	if _, ok := CallerFromContext(context.Background()); ok {
		t.Fatal("expected no caller in empty context")
	}
}

func TestCallerNilIDRejected(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{Role: RolePatient})
	if _, ok := CallerFromContext(ctx); ok {
		t.Fatal("caller with nil id should not be usable")
	}
}

func TestRoleValid(t *testing.T) {
	if !RolePatient.Valid() || !RoleDoctor.Valid() {
		t.Fatal("known roles must be valid")
	}
	if Role("admin").Valid() {
		t.Fatal("unknown role must be invalid")
	}
}
