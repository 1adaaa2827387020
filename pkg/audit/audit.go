// Package audit records session-policy events for later inspection.
//
// The limiter writes one entry per enforcement action (session evicted,
// new session blocked, limit exceeded with no action configured). Storage
// is pluggable; MemoryStorage ships for tests and small deployments.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Result represents the outcome of an audited action.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Event is a single audit entry.
type Event struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Action    string         `json:"action"`
	Result    Result         `json:"result"`
	Error     string         `json:"error,omitempty"`
	IP        string         `json:"ip,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Validate checks if the event has all required fields.
func (e *Event) Validate() error {
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEventValidation)
	}
	return nil
}

// EventOption applies configuration to an Event during creation.
type EventOption func(*Event)

// WithUser sets the acting user id.
func WithUser(userID string) EventOption {
	return func(e *Event) { e.UserID = userID }
}

// WithSession sets the affected session id.
func WithSession(sessionID string) EventOption {
	return func(e *Event) { e.SessionID = sessionID }
}

// WithIP sets the originating address.
func WithIP(ip string) EventOption {
	return func(e *Event) { e.IP = ip }
}

// WithMetadata merges additional key/value pairs into the event.
func WithMetadata(md map[string]any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any, len(md))
		}
		for k, v := range md {
			e.Metadata[k] = v
		}
	}
}

// Storage persists audit events.
type Storage interface {
	Store(ctx context.Context, event Event) error
}

// Logger records audit events.
type Logger interface {
	// Log records a successful action.
	Log(ctx context.Context, action string, opts ...EventOption) error

	// LogError records a failed action.
	LogError(ctx context.Context, action string, err error, opts ...EventOption) error
}

type logger struct {
	storage Storage
}

// NewLogger creates an audit logger writing to the given storage.
func NewLogger(storage Storage) Logger {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &logger{storage: storage}
}

func (l *logger) Log(ctx context.Context, action string, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultSuccess,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.storage.Store(ctx, event)
}

func (l *logger) LogError(ctx context.Context, action string, err error, opts ...EventOption) error {
	event := Event{
		ID:        uuid.New().String(),
		Action:    action,
		Result:    ResultFailure,
		Error:     err.Error(),
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&event)
	}

	if err := event.Validate(); err != nil {
		return err
	}

	return l.storage.Store(ctx, event)
}
