package identity

import "context"

// Role classifies who is driving an operation.
type Role string

const (
	RoleAnonymous Role = "anonymous"
	RoleCustomer  Role = "customer"
	RoleStaff     Role = "staff"
	RoleTherapist Role = "therapist"
	RoleAdmin     Role = "admin"
	RoleGateway   Role = "gateway"
)

// Actor is the caller identity threaded explicitly into every core operation.
type Actor struct {
	Subject string
	Role    Role
}

// Anonymous is used when no credentials were presented.
var Anonymous = Actor{Subject: "anonymous", Role: RoleAnonymous}

// Gateway identifies payment gateway deliveries.
var Gateway = Actor{Subject: "payment-gateway", Role: RoleGateway}

// String returns "role:subject" for logs and audit columns.
func (a Actor) String() string {
	if a.Subject == "" {
		return string(a.Role)
	}
	return string(a.Role) + ":" + a.Subject
}

// IsAdmin reports whether the actor may bypass lifecycle rules.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaff reports whether the actor works at the spa.
func (a Actor) IsStaff() bool {
	switch a.Role {
	case RoleStaff, RoleTherapist, RoleAdmin:
		return true
	}
	return false
}

type ctxKey string

const actorKey ctxKey = "spa.actor"

// WithActor stores the actor in context. Only the HTTP edge should call this.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext extracts the actor, falling back to Anonymous.
func ActorFromContext(ctx context.Context) Actor {
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok || actor.Role == "" {
		return Anonymous
	}
	return actor
}
