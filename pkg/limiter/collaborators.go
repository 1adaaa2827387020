package limiter

import (
	"context"

	"github.com/google/uuid"
)

// MaxResolver resolves a per-user maximum that overrides the global
// setting, typically from a role or plan lookup. ok=false means no
// override exists for the user.
type MaxResolver interface {
	MaxSessions(ctx context.Context, userID uuid.UUID) (max int, ok bool, err error)
}

// MaxResolverFunc adapts a function to the MaxResolver interface.
type MaxResolverFunc func(ctx context.Context, userID uuid.UUID) (int, bool, error)

func (f MaxResolverFunc) MaxSessions(ctx context.Context, userID uuid.UUID) (int, bool, error) {
	return f(ctx, userID)
}

// Masquerader is the optional impersonation collaborator. When an
// administrator acts as another user, the secondary session can be
// excluded from that user's count. The gate treats a non-nil Masquerader
// as the capability check; there is no runtime probing beyond that.
type Masquerader interface {
	// IsMasqueradeSession reports whether sid is an impersonation session
	// targeting userID.
	IsMasqueradeSession(ctx context.Context, sid string, userID uuid.UUID) (bool, error)
}

// MasqueraderFunc adapts a function to the Masquerader interface.
type MasqueraderFunc func(ctx context.Context, sid string, userID uuid.UUID) (bool, error)

func (f MasqueraderFunc) IsMasqueradeSession(ctx context.Context, sid string, userID uuid.UUID) (bool, error) {
	return f(ctx, sid, userID)
}
