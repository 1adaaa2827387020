// Package sessions exposes the self-service side of session limiting
// over HTTP: a picker listing the caller's active sessions with the
// ability to disconnect any of them, and the administrative settings
// form. The package is thin glue; all enforcement logic lives in
// pkg/limiter.
package sessions

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sessionguard/sessionguard/pkg/limiter"
	"github.com/sessionguard/sessionguard/pkg/session"
)

// Service handles the session picker and settings form routes.
type Service struct {
	store      session.Store
	settings   limiter.SettingsStore
	evictor    *limiter.Evictor
	masquerade bool
	logoutURL  string
	frontURL   string
	log        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithMasqueradeField includes the impersonation exclusion field in the
// settings form. Enable it only when a masquerade detector is wired into
// the gate; the field is meaningless otherwise.
func WithMasqueradeField() Option {
	return func(s *Service) { s.masquerade = true }
}

// WithLogoutURL sets the redirect target for terminated callers.
func WithLogoutURL(u string) Option {
	return func(s *Service) { s.logoutURL = u }
}

// WithFrontURL sets the redirect target after disconnecting another
// session.
func WithFrontURL(u string) Option {
	return func(s *Service) { s.frontURL = u }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates the sessions module service.
func NewService(store session.Store, settings limiter.SettingsStore, evictor *limiter.Evictor, opts ...Option) *Service {
	if store == nil || settings == nil || evictor == nil {
		panic("sessions: store, settings and evictor are required")
	}
	s := &Service{
		store:     store,
		settings:  settings,
		evictor:   evictor,
		logoutURL: "/login",
		frontURL:  "/",
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handle returns the module router, meant to be mounted under a path of
// the host application's choosing:
//
//	r.Mount("/sessions", svc.Handle())
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.listSessions)
	r.Post("/evict", s.evictSession)
	r.Get("/settings", s.settingsForm)
	r.Post("/settings", s.saveSettings)

	return r
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
