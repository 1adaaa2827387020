package limiter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Severity is the display severity of the logged-out message.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityStatus  Severity = "status"
	// SeverityNone suppresses the message entirely.
	SeverityNone Severity = "none"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityError, SeverityWarning, SeverityStatus, SeverityNone:
		return true
	}
	return false
}

// Persisted settings keys. Stores that keep settings as key/value pairs
// (the Redis store, exported form specs) use these names.
const (
	KeyMax                      = "max"
	KeyIncludeRootUser          = "include_root_user"
	KeyBehaviour                = "behaviour"
	KeyMasqueradeIgnore         = "masquerade_ignore"
	KeyLimitHitMessage          = "limit_hit_message"
	KeyLoggedOutMessage         = "logged_out_message"
	KeyLoggedOutMessageSeverity = "logged_out_message_severity"
)

// Settings is the process-wide limiter configuration. It is loaded per
// request from a SettingsStore and treated as immutable within a request.
type Settings struct {
	// Max is the default maximum number of active sessions per user.
	// Zero means unlimited.
	Max int `json:"max"`

	// IncludeRootUser applies the limit to the designated root account.
	IncludeRootUser bool `json:"include_root_user"`

	// Mode selects the behaviour when the limit is exceeded.
	Mode Mode `json:"behaviour"`

	// MasqueradeIgnore excludes impersonation sessions from the count.
	// Only meaningful when a Masquerader collaborator is configured.
	MasqueradeIgnore bool `json:"masquerade_ignore"`

	// LimitHitMessage is shown on the blocked workstation when the limit
	// is reached. "@number" is replaced with the maximum.
	LimitHitMessage string `json:"limit_hit_message"`

	// LoggedOutMessage is shown to a user whose session was dropped.
	// "@number" is replaced with the maximum.
	LoggedOutMessage string `json:"logged_out_message"`

	// LoggedOutMessageSeverity controls how the logged-out message is
	// displayed; SeverityNone suppresses it.
	LoggedOutMessageSeverity Severity `json:"logged_out_message_severity"`
}

// DefaultSettings returns the stock configuration: limit of one session
// per user with the log-only behaviour.
func DefaultSettings() Settings {
	return Settings{
		Max:             1,
		IncludeRootUser: false,
		Mode:            ModeNone,
		LimitHitMessage: "The maximum number of simultaneous sessions (@number) for your account has been reached. " +
			"You did not log off from a previous session or someone else is logged on to your account.",
		LoggedOutMessage: "You have been automatically logged out. Someone else has logged in with your username " +
			"on another computer, and the maximum number of @number simultaneous sessions was reached.",
		LoggedOutMessageSeverity: SeverityError,
	}
}

// Validate checks the settings for values that must never reach the gate.
func (s Settings) Validate() error {
	if s.Max < 0 {
		return ErrNegativeMax
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidMode, s.Mode)
	}
	if !s.LoggedOutMessageSeverity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, s.LoggedOutMessageSeverity)
	}
	return nil
}

// RenderLimitHit expands the @number placeholder against max.
func (s Settings) RenderLimitHit(max int) string {
	return strings.ReplaceAll(s.LimitHitMessage, "@number", strconv.Itoa(max))
}

// RenderLoggedOut expands the @number placeholder against max.
func (s Settings) RenderLoggedOut(max int) string {
	return strings.ReplaceAll(s.LoggedOutMessage, "@number", strconv.Itoa(max))
}

// ParseMax validates a submitted max-sessions value. Non-numeric and
// negative input is rejected before it can be persisted.
func ParseMax(value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Join(ErrMaxNotANumber, err)
	}
	if n < 0 {
		return 0, ErrNegativeMax
	}
	return n, nil
}

// SettingsStore persists limiter settings.
type SettingsStore interface {
	// Load returns the current settings.
	Load(ctx context.Context) (Settings, error)

	// Save validates and persists new settings.
	Save(ctx context.Context, s Settings) error
}

// MemorySettingsStore keeps settings in memory, seeded with defaults.
type MemorySettingsStore struct {
	mu       sync.RWMutex
	settings Settings
}

// NewMemorySettingsStore creates a settings store seeded with s.
func NewMemorySettingsStore(s Settings) *MemorySettingsStore {
	return &MemorySettingsStore{settings: s}
}

func (m *MemorySettingsStore) Load(ctx context.Context) (Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemorySettingsStore) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}
