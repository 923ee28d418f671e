package app

import (
	"context"

	"github.com/google/uuid"
)

func newUUID() string {
	return uuid.NewString()
}

type actorKey struct{}

const systemActor = "system"

// WithActor records the authenticated administrator acting through ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFrom returns the actor recorded on ctx, or "system".
func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return systemActor
}

func hasActor(ctx context.Context) bool {
	a, ok := ctx.Value(actorKey{}).(string)
	return ok && a != ""
}
