package rbac

import "context"

// Grant ties a permission to an actor.
type Grant struct {
	Actor      string
	Permission string
}

// Store resolves the permissions granted to an actor.
type Store interface {
	Permissions(ctx context.Context, actor string) ([]string, error)
}
