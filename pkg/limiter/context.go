package limiter

import (
	"context"

	"github.com/google/uuid"
)

// Actor identifies the authenticated principal of the current request.
// The request pipeline injects it explicitly; the gate never consults
// ambient state.
type Actor struct {
	UserID        uuid.UUID
	SID           string
	Authenticated bool
}

type actorContextKey struct{}

// WithActor attaches the request's actor to the context.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, a)
}

// ActorFromContext retrieves the actor from the context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorContextKey{}).(Actor)
	return a, ok
}

type bypassContextKey struct{}

// WithBypass marks the request as exempt from limit checking. Intended as
// an administrative escape hatch for specific endpoints.
func WithBypass(ctx context.Context) context.Context {
	return context.WithValue(ctx, bypassContextKey{}, true)
}

// BypassFromContext reports whether the request is exempt from checking.
func BypassFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(bypassContextKey{}).(bool)
	return v
}

type noticeContextKey struct{}

// WithNotice attaches a termination notice to the context.
func WithNotice(ctx context.Context, n Notice) context.Context {
	return context.WithValue(ctx, noticeContextKey{}, n)
}

// NoticeFromContext retrieves a termination notice from the context.
func NoticeFromContext(ctx context.Context) (Notice, bool) {
	n, ok := ctx.Value(noticeContextKey{}).(Notice)
	return n, ok
}
