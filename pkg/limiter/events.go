package limiter

import (
	"time"

	"github.com/google/uuid"
)

// Reason describes why a session was terminated.
type Reason string

const (
	// ReasonCollision marks an automatic eviction after the limit was exceeded.
	ReasonCollision Reason = "collision"
	// ReasonDisconnect marks a user-initiated eviction from the session picker.
	ReasonDisconnect Reason = "disconnect"
)

// Event is published whenever a session is terminated by the limiter.
// Observers decide what to do with it; the limiter does not care.
type Event struct {
	SID    string    `json:"sid"`
	UserID uuid.UUID `json:"user_id"`
	Reason Reason    `json:"reason"`
	At     time.Time `json:"at"`
}
