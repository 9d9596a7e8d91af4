package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context. The caller
// layer (authentication lives there) resolves the actor; the core only
// records it on approvals, settlements and audit rows.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id, zero when absent.
func ActorFromContext(ctx context.Context) int64 {
	actorID, _ := ctx.Value(actorContextKey{}).(int64)
	return actorID
}
