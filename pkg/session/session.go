package session

import (
	"time"

	"github.com/google/uuid"
)

// Session represents one authenticated browser session.
type Session struct {
	SID        string    `json:"sid"`
	UserID     uuid.UUID `json:"user_id"`
	Hostname   string    `json:"hostname,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	// CheckedOnce and Verified implement the limit gate's two-pass
	// verification. CheckedOnce marks the first clean pass; Verified marks
	// the second and permanently exempts the session from further checks.
	CheckedOnce bool `json:"checked_once,omitempty"`
	Verified    bool `json:"verified,omitempty"`
}

// New creates a session owned by userID with the given ttl.
func New(sid string, userID uuid.UUID, hostname string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		SID:        sid,
		UserID:     userID,
		Hostname:   hostname,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(ttl),
	}
}

// IsAuthenticated returns true if the session belongs to a user.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.UserID != uuid.Nil
}

// IsExpired returns true if the session has expired.
func (s *Session) IsExpired() bool {
	return s != nil && time.Now().After(s.ExpiresAt)
}

// IdleFor returns how long the session has been inactive.
func (s *Session) IdleFor() time.Duration {
	if s == nil {
		return 0
	}
	return time.Since(s.LastSeenAt)
}

// Touch updates the last activity time.
func (s *Session) Touch() {
	if s == nil {
		return
	}
	s.LastSeenAt = time.Now()
}
