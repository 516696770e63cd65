package shared

import (
	"context"
	"strings"
)

// Actor identifies the caller of a ledger operation. Authentication happens upstream;
// the ledger only carries the resolved identity and its granted permissions.
type Actor struct {
	Username    string
	Permissions []string
}

// IsAuthenticated reports whether an identity was resolved.
func (a Actor) IsAuthenticated() bool {
	return strings.TrimSpace(a.Username) != ""
}

// HasPermission reports whether key was granted, case-insensitively.
func (a Actor) HasPermission(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, p := range a.Permissions {
		if strings.ToLower(p) == key {
			return true
		}
	}
	return false
}

type actorContextKey struct{}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}
