package sessions

import (
	"net/http"
	"time"

	"github.com/sessionguard/sessionguard/pkg/limiter"
)

// sessionItem is one row of the picker listing.
type sessionItem struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	IdleSeconds int64  `json:"idle_seconds"`
	Current     bool   `json:"current"`
}

// listSessions returns the caller's active sessions, oldest first. When
// the disallow-new mode is active and the caller is still over the
// limit, the caller's own session is terminated instead: a blocked
// session must never get to browse while it waits.
func (s *Service) listSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := limiter.ActorFromContext(ctx)
	if !ok || !actor.Authenticated || actor.SID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load limit settings", "error", err)
		cfg = limiter.DefaultSettings()
	}

	active, err := s.store.ListActive(ctx, actor.UserID)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to list sessions", "error", err, "user_id", actor.UserID.String())
		respondError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	if cfg.Mode == limiter.ModeDisallowNew && cfg.Max > 0 && len(active) > cfg.Max {
		for _, sess := range active {
			if sess.SID != actor.SID {
				continue
			}
			if err := s.evictor.Evict(ctx, sess, limiter.ReasonCollision,
				cfg.RenderLimitHit(cfg.Max), limiter.SeverityError); err != nil {
				s.log.ErrorContext(ctx, "failed to terminate blocked session", "error", err, "sid", sess.SID)
			}
			break
		}
		http.Redirect(w, r, s.logoutURL, http.StatusSeeOther)
		return
	}

	now := time.Now()
	items := make([]sessionItem, 0, len(active))
	for _, sess := range active {
		items = append(items, sessionItem{
			ID:          sess.SID,
			Host:        sess.Hostname,
			IdleSeconds: int64(now.Sub(sess.LastSeenAt) / time.Second),
			Current:     sess.SID == actor.SID,
		})
	}

	respondJSON(w, http.StatusOK, items)
}

// evictSession disconnects one of the caller's sessions. Disconnecting
// the current session signs the caller out; disconnecting another
// session leaves a notice for its owner and returns the caller to the
// front page.
func (s *Service) evictSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	actor, ok := limiter.ActorFromContext(ctx)
	if !ok || !actor.Authenticated || actor.SID == "" {
		respondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form")
		return
	}
	targetSID := r.PostFormValue("session_id")
	if targetSID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	target, err := s.store.Get(ctx, targetSID)
	if err != nil || target.UserID != actor.UserID {
		// Unknown sessions and other users' sessions are
		// indistinguishable to the caller.
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load limit settings", "error", err)
		cfg = limiter.DefaultSettings()
	}

	if err := s.evictor.Evict(ctx, *target, limiter.ReasonDisconnect,
		cfg.RenderLoggedOut(cfg.Max), cfg.LoggedOutMessageSeverity); err != nil {
		s.log.ErrorContext(ctx, "failed to disconnect session", "error", err, "sid", targetSID)
		respondError(w, http.StatusInternalServerError, "failed to disconnect session")
		return
	}

	if targetSID == actor.SID {
		http.Redirect(w, r, s.logoutURL, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, s.frontURL, http.StatusSeeOther)
}
