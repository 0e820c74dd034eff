package identity

import (
	"context"
	"testing"
)

func TestWithActorAndActorFromContext(t *testing.T) {
	ctx := WithActor(context.Background(), Actor{Subject: "alice", Role: RoleTherapist})

	got := ActorFromContext(ctx)
	if got.Subject != "alice" || got.Role != RoleTherapist {
		t.Fatalf("unexpected actor %+v", got)
	}
	if !got.IsStaff() {
		t.Fatalf("expected therapist to count as staff")
	}
	if got.IsAdmin() {
		t.Fatalf("therapist must not be admin")
	}
	if got.String() != "therapist:alice" {
		t.Fatalf("unexpected string %q", got.String())
	}
}

func TestActorFromContext_MissingOrMalformed(t *testing.T) {
	if got := ActorFromContext(context.Background()); got != Anonymous {
		t.Fatalf("expected anonymous, got %+v", got)
	}

	ctx := context.WithValue(context.Background(), actorKey, "admin")
	if got := ActorFromContext(ctx); got != Anonymous {
		t.Fatalf("expected anonymous for non-actor value, got %+v", got)
	}

	ctx = WithActor(context.Background(), Actor{Subject: "bob"})
	if got := ActorFromContext(ctx); got != Anonymous {
		t.Fatalf("expected anonymous for role-less actor, got %+v", got)
	}
}

func TestCustomerIsNotStaff(t *testing.T) {
	if (Actor{Subject: "c", Role: RoleCustomer}).IsStaff() {
		t.Fatal("customer must not be staff")
	}
}
