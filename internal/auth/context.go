package auth

import (
	"context"

	"github.com/google/uuid"
)

// Actor is the authenticated identity attached to audit records. Tokens are
// issued by the surrounding payroll system; this service only verifies them.
type Actor struct {
	UserID uuid.UUID
	Name   string
}

// AuditName is the string recorded in an entry's history.
func (a Actor) AuditName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.UserID.String()
}

type actorKey struct{}

func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
