package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the interface for session persistence. The limiter treats
// the store as an external collaborator: it counts, lists and deletes
// sessions but never creates them.
type Store interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by id. Returns ErrSessionNotFound for
	// unknown or expired sessions.
	Get(ctx context.Context, sid string) (*Session, error)

	// CountActive returns the number of distinct active session ids owned
	// by userID, excluding any ids in excludeSIDs.
	CountActive(ctx context.Context, userID uuid.UUID, excludeSIDs ...string) (int, error)

	// ListActive returns the user's active sessions ordered oldest first:
	// last activity ascending, session id as the tiebreak.
	ListActive(ctx context.Context, userID uuid.UUID) ([]Session, error)

	// Touch updates only the last activity time.
	Touch(ctx context.Context, sid string, at time.Time) error

	// SetFlags updates the gate verification flags.
	SetFlags(ctx context.Context, sid string, checkedOnce, verified bool) error

	// Delete removes a session by id. Deleting an absent session is a
	// no-op, so racing evictions stay idempotent.
	Delete(ctx context.Context, sid string) error

	// DeleteExpired removes all expired sessions.
	DeleteExpired(ctx context.Context) error
}
