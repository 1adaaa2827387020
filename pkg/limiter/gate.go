package limiter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sessionguard/sessionguard/pkg/audit"
	"github.com/sessionguard/sessionguard/pkg/session"
)

// Gate is the per-request limit check. It runs before the response is
// generated, counts the actor's active sessions, asks Decide for a
// verdict and applies it. Every store failure fails open: enforcement is
// a soft policy and must never lock users out.
type Gate struct {
	store     session.Store
	settings  SettingsStore
	evictor   *Evictor
	resolver  MaxResolver
	masq      Masquerader
	rootUser  uuid.UUID
	logoutURL string
	auditor   audit.Logger
	log       *slog.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithMaxResolver sets the per-user override lookup consulted before the
// global maximum.
func WithMaxResolver(r MaxResolver) GateOption {
	return func(g *Gate) { g.resolver = r }
}

// WithMasquerader enables impersonation-session exclusion. A nil value
// leaves the capability disabled.
func WithMasquerader(m Masquerader) GateOption {
	return func(g *Gate) { g.masq = m }
}

// WithRootUser designates the privileged account the limit skips unless
// the include_root_user setting is on.
func WithRootUser(id uuid.UUID) GateOption {
	return func(g *Gate) { g.rootUser = id }
}

// WithLogoutURL sets the destination blocked requests are redirected to.
// Defaults to "/login".
func WithLogoutURL(u string) GateOption {
	return func(g *Gate) { g.logoutURL = u }
}

// WithGateAudit sets the audit logger limit hits are recorded to.
func WithGateAudit(a audit.Logger) GateOption {
	return func(g *Gate) { g.auditor = a }
}

// WithGateLogger sets the structured logger.
func WithGateLogger(log *slog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a Gate enforcing limits against the given stores.
func NewGate(store session.Store, settings SettingsStore, evictor *Evictor, opts ...GateOption) *Gate {
	g := &Gate{
		store:     store,
		settings:  settings,
		evictor:   evictor,
		logoutURL: "/login",
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Middleware returns the gate as a net/http middleware. The caller must
// inject the request's Actor into the context (WithActor) before the gate
// runs; anonymous requests pass through untouched.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		actor, ok := ActorFromContext(ctx)
		if !ok || !actor.Authenticated || actor.SID == "" {
			next.ServeHTTP(w, r)
			return
		}

		if BypassFromContext(ctx) {
			next.ServeHTTP(w, r)
			return
		}

		settings, err := g.settings.Load(ctx)
		if err != nil {
			g.log.ErrorContext(ctx, "failed to load limiter settings, skipping check", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if g.rootUser != uuid.Nil && actor.UserID == g.rootUser && !settings.IncludeRootUser {
			next.ServeHTTP(w, r)
			return
		}

		// Prefer the session already resolved into the context; a
		// verified session then costs no store access at all.
		sess, ok := session.FromContext(ctx)
		if !ok || sess.SID != actor.SID {
			var err error
			sess, err = g.store.Get(ctx, actor.SID)
			if err != nil {
				if !errors.Is(err, session.ErrSessionNotFound) {
					g.log.ErrorContext(ctx, "failed to load session, skipping check", "error", err, "sid", actor.SID)
				}
				next.ServeHTTP(w, r)
				return
			}
		}

		if sess.Verified {
			next.ServeHTTP(w, r)
			return
		}

		count, err := g.countActive(ctx, actor, settings)
		if err != nil {
			g.log.ErrorContext(ctx, "failed to count active sessions, skipping check", "error", err, "user_id", actor.UserID.String())
			next.ServeHTTP(w, r)
			return
		}

		max := g.resolveMax(ctx, actor.UserID, settings)
		verdict := Decide(count, max, settings.Mode)

		switch verdict.Action {
		case ActionAllow:
			g.markChecked(ctx, sess)

		case ActionAllowLogOnly:
			g.recordLimitHit(ctx, actor, count, max)

		case ActionEvictOldest:
			msg := settings.RenderLoggedOut(max)
			evicted, err := g.evictor.EvictOldest(ctx, actor.UserID, verdict.EvictCount, msg, settings.LoggedOutMessageSeverity)
			if err != nil {
				// Skipped for this pass; the next request retries.
				g.log.ErrorContext(ctx, "failed to evict oldest sessions", "error", err, "user_id", actor.UserID.String())
			}
			for _, s := range evicted {
				if s.SID == actor.SID {
					g.endRequest(w, r)
					return
				}
			}

		case ActionBlockNew:
			// The session that just tried to establish is the one denied.
			if err := g.evictor.Evict(ctx, *sess, ReasonCollision, settings.RenderLimitHit(max), SeverityError); err != nil {
				next.ServeHTTP(w, r)
				return
			}
			g.endRequest(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// countActive returns the actor's distinct active session count,
// excluding impersonation sessions when the capability is configured and
// the setting asks for it.
func (g *Gate) countActive(ctx context.Context, actor Actor, settings Settings) (int, error) {
	var exclude []string
	if settings.MasqueradeIgnore && g.masq != nil {
		active, err := g.store.ListActive(ctx, actor.UserID)
		if err != nil {
			return 0, err
		}
		for _, s := range active {
			is, err := g.masq.IsMasqueradeSession(ctx, s.SID, actor.UserID)
			if err != nil {
				return 0, err
			}
			if is {
				exclude = append(exclude, s.SID)
			}
		}
	}

	return g.store.CountActive(ctx, actor.UserID, exclude...)
}

// resolveMax applies the per-user override when one exists; resolver
// failures fall back to the global maximum.
func (g *Gate) resolveMax(ctx context.Context, userID uuid.UUID, settings Settings) int {
	if g.resolver == nil {
		return settings.Max
	}

	override, ok, err := g.resolver.MaxSessions(ctx, userID)
	if err != nil {
		g.log.ErrorContext(ctx, "max-sessions resolver failed, using global max", "error", err, "user_id", userID.String())
		return settings.Max
	}
	if !ok {
		return settings.Max
	}
	return override
}

// markChecked advances the two-pass verification. A session row written
// by a near-simultaneous login may be invisible to this pass's count, so
// the first clean pass only sets CheckedOnce; the second sets Verified
// and permanently exempts the session from further checks.
func (g *Gate) markChecked(ctx context.Context, sess *session.Session) {
	checkedOnce := sess.CheckedOnce
	var err error
	if !checkedOnce {
		err = g.store.SetFlags(ctx, sess.SID, true, false)
	} else {
		err = g.store.SetFlags(ctx, sess.SID, true, true)
	}
	if err != nil {
		g.log.ErrorContext(ctx, "failed to update verification flags", "error", err, "sid", sess.SID)
	}
}

// recordLimitHit logs and audits an exceeded limit under the log-only
// mode. The verification flags stay untouched, so every further pass of
// the over-limit session is recorded too.
func (g *Gate) recordLimitHit(ctx context.Context, actor Actor, count, max int) {
	g.log.WarnContext(ctx, "session limit exceeded, no action configured",
		"user_id", actor.UserID.String(), "active", count, "max", max)

	if g.auditor != nil {
		_ = g.auditor.Log(ctx, "session.limit_exceeded",
			audit.WithUser(actor.UserID.String()),
			audit.WithSession(actor.SID),
			audit.WithMetadata(map[string]any{"active": count, "max": max}),
		)
	}
}

// endRequest terminates the current request after a self-eviction. The
// session cookie is deliberately left in place: the termination notice is
// keyed by the dead session id, and the notice middleware resolves it
// from the stale cookie on the owner's next request. The authentication
// layer issues a fresh id at the next login.
func (g *Gate) endRequest(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, g.logoutURL, http.StatusSeeOther)
}
