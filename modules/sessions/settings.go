package sessions

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sessionguard/sessionguard/pkg/limiter"
)

// FormOption is one choice of a select or radio field.
type FormOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FormField describes one field of the settings form.
type FormField struct {
	Name    string       `json:"name"`
	Type    string       `json:"type"`
	Label   string       `json:"label"`
	Value   any          `json:"value"`
	Options []FormOption `json:"options,omitempty"`
}

// settingsForm describes the settings form: current values plus the
// choices each field offers. Clients render it however they like.
func (s *Service) settingsForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load limit settings", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	fields := []FormField{
		{
			Name:  limiter.KeyMax,
			Type:  "text",
			Label: "Default maximum number of active sessions",
			Value: strconv.Itoa(cfg.Max),
		},
		{
			Name:  limiter.KeyBehaviour,
			Type:  "radios",
			Label: "When the maximum is exceeded",
			Value: string(cfg.Mode),
			Options: []FormOption{
				{Value: string(limiter.ModeNone), Label: "Do nothing, just record the event"},
				{Value: string(limiter.ModeDropOldest), Label: "Automatically log out the oldest session"},
				{Value: string(limiter.ModeDisallowNew), Label: "Prevent the new login"},
			},
		},
		{
			Name:  limiter.KeyIncludeRootUser,
			Type:  "checkbox",
			Label: "Apply the limit to the root account",
			Value: cfg.IncludeRootUser,
		},
	}

	if s.masquerade {
		fields = append(fields, FormField{
			Name:  limiter.KeyMasqueradeIgnore,
			Type:  "checkbox",
			Label: "Ignore impersonated sessions",
			Value: cfg.MasqueradeIgnore,
		})
	}

	fields = append(fields,
		FormField{
			Name:  limiter.KeyLimitHitMessage,
			Type:  "textarea",
			Label: "Message shown when the limit is reached (@number is replaced with the maximum)",
			Value: cfg.LimitHitMessage,
		},
		FormField{
			Name:  limiter.KeyLoggedOutMessage,
			Type:  "textarea",
			Label: "Message shown to users who were automatically logged out",
			Value: cfg.LoggedOutMessage,
		},
		FormField{
			Name:  limiter.KeyLoggedOutMessageSeverity,
			Type:  "select",
			Label: "Logged out message severity",
			Value: string(cfg.LoggedOutMessageSeverity),
			Options: []FormOption{
				{Value: string(limiter.SeverityError), Label: "Error"},
				{Value: string(limiter.SeverityWarning), Label: "Warning"},
				{Value: string(limiter.SeverityStatus), Label: "Status"},
				{Value: string(limiter.SeverityNone), Label: "No message"},
			},
		},
	)

	respondJSON(w, http.StatusOK, map[string]any{"fields": fields})
}

// saveSettings validates and persists the submitted settings. Validation
// failures return field-level errors and nothing is persisted.
func (s *Service) saveSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid form")
		return
	}

	cfg, err := s.settings.Load(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "failed to load limit settings", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	fieldErrors := make(map[string]string)

	if v := r.PostForm.Get(limiter.KeyMax); r.PostForm.Has(limiter.KeyMax) {
		max, err := limiter.ParseMax(v)
		switch {
		case errors.Is(err, limiter.ErrMaxNotANumber):
			fieldErrors[limiter.KeyMax] = "You must specify a positive integer for the maximum number of sessions."
		case errors.Is(err, limiter.ErrNegativeMax):
			fieldErrors[limiter.KeyMax] = "The maximum number of sessions cannot be negative."
		case err != nil:
			fieldErrors[limiter.KeyMax] = err.Error()
		default:
			cfg.Max = max
		}
	}

	if v := r.PostForm.Get(limiter.KeyBehaviour); r.PostForm.Has(limiter.KeyBehaviour) {
		mode := limiter.Mode(v)
		if !mode.Valid() {
			fieldErrors[limiter.KeyBehaviour] = "Unknown behaviour."
		} else {
			cfg.Mode = mode
		}
	}

	if v := r.PostForm.Get(limiter.KeyLoggedOutMessageSeverity); r.PostForm.Has(limiter.KeyLoggedOutMessageSeverity) {
		sev := limiter.Severity(v)
		if !sev.Valid() {
			fieldErrors[limiter.KeyLoggedOutMessageSeverity] = "Unknown severity."
		} else {
			cfg.LoggedOutMessageSeverity = sev
		}
	}

	if r.PostForm.Has(limiter.KeyIncludeRootUser) {
		cfg.IncludeRootUser = parseCheckbox(r.PostForm.Get(limiter.KeyIncludeRootUser))
	}
	if s.masquerade && r.PostForm.Has(limiter.KeyMasqueradeIgnore) {
		cfg.MasqueradeIgnore = parseCheckbox(r.PostForm.Get(limiter.KeyMasqueradeIgnore))
	}
	if r.PostForm.Has(limiter.KeyLimitHitMessage) {
		cfg.LimitHitMessage = r.PostForm.Get(limiter.KeyLimitHitMessage)
	}
	if r.PostForm.Has(limiter.KeyLoggedOutMessage) {
		cfg.LoggedOutMessage = r.PostForm.Get(limiter.KeyLoggedOutMessage)
	}

	if len(fieldErrors) > 0 {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": fieldErrors})
		return
	}

	if err := cfg.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := s.settings.Save(ctx, cfg); err != nil {
		s.log.ErrorContext(ctx, "failed to save limit settings", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func parseCheckbox(v string) bool {
	switch v {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}
