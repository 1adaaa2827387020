package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/sessionguard/sessionguard/pkg/clientip"
	"github.com/sessionguard/sessionguard/pkg/limiter"
	"github.com/sessionguard/sessionguard/pkg/session"
)

type application struct {
	cfg       appConfig
	store     session.Store
	transport session.Transport
	log       *slog.Logger
}

// resolveActor loads the session referenced by the request cookie and
// places the caller's identity into the context. Requests without a
// valid session proceed anonymously; the dead cookie is kept so a
// pending termination notice can still be delivered.
func (a *application) resolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sid, err := a.transport.GetSID(r)
		if err != nil || sid == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := a.store.Get(ctx, sid)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		sess.Touch()
		if err := a.store.Touch(ctx, sid, sess.LastSeenAt); err != nil {
			a.log.ErrorContext(ctx, "failed to touch session", "error", err, "sid", sid)
		}

		ctx = session.WithSession(ctx, sess)
		ctx = limiter.WithActor(ctx, limiter.Actor{
			UserID:        sess.UserID,
			SID:           sess.SID,
			Authenticated: sess.IsAuthenticated(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// login starts a session for the submitted user id. There is no
// password; this binary exists to demonstrate limit enforcement, not
// authentication.
func (a *application) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(r.PostFormValue("user_id"))
	if err != nil {
		http.Error(w, "user_id must be a UUID", http.StatusBadRequest)
		return
	}

	sess := session.New(uuid.NewString(), userID, clientip.GetIP(r), a.cfg.SessionTTL)
	if err := a.store.Create(ctx, sess); err != nil {
		a.log.ErrorContext(ctx, "failed to create session", "error", err, "user_id", userID.String())
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	if err := a.transport.SetSID(w, sess.SID, a.cfg.SessionTTL); err != nil {
		a.log.ErrorContext(ctx, "failed to set session cookie", "error", err)
	}

	a.log.InfoContext(ctx, "user logged in", "user_id", userID.String(), "sid", sess.SID)
	http.Redirect(w, r, a.cfg.FrontURL, http.StatusSeeOther)
}

// home reports who the caller is and surfaces any pending termination
// notice.
func (a *application) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := map[string]any{"authenticated": false}

	if actor, ok := limiter.ActorFromContext(ctx); ok && actor.Authenticated {
		resp["authenticated"] = true
		resp["user_id"] = actor.UserID.String()
		resp["session_id"] = actor.SID
	}

	if n, ok := limiter.NoticeFromContext(ctx); ok {
		resp["notice"] = map[string]string{
			"message":  n.Message,
			"severity": string(n.Severity),
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(resp)
}
