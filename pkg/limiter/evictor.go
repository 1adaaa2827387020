package limiter

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sessionguard/sessionguard/pkg/audit"
	"github.com/sessionguard/sessionguard/pkg/broadcast"
	"github.com/sessionguard/sessionguard/pkg/session"
)

// Evictor terminates chosen sessions. Deleting the record is the only
// hard requirement; leaving a notice, publishing an event and writing an
// audit entry are best-effort side effects that are logged when they fail.
type Evictor struct {
	store   session.Store
	notices NoticeStore
	events  broadcast.Broadcaster[Event]
	auditor audit.Logger
	log     *slog.Logger
}

// EvictorOption configures an Evictor.
type EvictorOption func(*Evictor)

// WithEvictorEvents sets the broadcaster eviction events are published to.
func WithEvictorEvents(b broadcast.Broadcaster[Event]) EvictorOption {
	return func(e *Evictor) { e.events = b }
}

// WithEvictorAudit sets the audit logger enforcement actions are written to.
func WithEvictorAudit(a audit.Logger) EvictorOption {
	return func(e *Evictor) { e.auditor = a }
}

// WithEvictorLogger sets the structured logger.
func WithEvictorLogger(log *slog.Logger) EvictorOption {
	return func(e *Evictor) { e.log = log }
}

// NewEvictor creates an Evictor operating on the given session and notice
// stores.
func NewEvictor(store session.Store, notices NoticeStore, opts ...EvictorOption) *Evictor {
	e := &Evictor{
		store:   store,
		notices: notices,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evict terminates the target session: the record is removed, a notice
// with the given message is left for the session's owner, and observers
// are informed. A target that is already gone counts as success.
func (e *Evictor) Evict(ctx context.Context, target session.Session, reason Reason, msg string, severity Severity) error {
	if err := e.store.Delete(ctx, target.SID); err != nil {
		e.logAuditError(ctx, target, reason, err)
		return err
	}

	if err := e.notices.Put(ctx, Notice{
		SID:       target.SID,
		Reason:    reason,
		Message:   msg,
		Severity:  severity,
		CreatedAt: time.Now(),
	}); err != nil {
		e.log.ErrorContext(ctx, "failed to store termination notice",
			"error", err, "sid", target.SID, "reason", string(reason))
	}

	if e.events != nil {
		_ = e.events.Broadcast(ctx, broadcast.Message[Event]{Data: Event{
			SID:    target.SID,
			UserID: target.UserID,
			Reason: reason,
			At:     time.Now(),
		}})
	}

	if e.auditor != nil {
		if err := e.auditor.Log(ctx, "session.evicted",
			audit.WithUser(target.UserID.String()),
			audit.WithSession(target.SID),
			audit.WithMetadata(map[string]any{"reason": string(reason)}),
		); err != nil {
			e.log.ErrorContext(ctx, "failed to write audit entry", "error", err, "sid", target.SID)
		}
	}

	e.log.InfoContext(ctx, "session evicted",
		"sid", target.SID, "user_id", target.UserID.String(), "reason", string(reason))

	return nil
}

// EvictOldest terminates the user's count oldest sessions, ordered by
// last activity ascending with session id as the tiebreak. It returns the
// sessions that were evicted so the caller can detect whether its own
// session was among them.
func (e *Evictor) EvictOldest(ctx context.Context, userID uuid.UUID, count int, msg string, severity Severity) ([]session.Session, error) {
	if count <= 0 {
		return nil, nil
	}

	active, err := e.store.ListActive(ctx, userID)
	if err != nil {
		return nil, err
	}

	if count > len(active) {
		count = len(active)
	}

	evicted := make([]session.Session, 0, count)
	for _, s := range active[:count] {
		if err := e.Evict(ctx, s, ReasonCollision, msg, severity); err != nil {
			return evicted, err
		}
		evicted = append(evicted, s)
	}

	return evicted, nil
}

func (e *Evictor) logAuditError(ctx context.Context, target session.Session, reason Reason, err error) {
	e.log.ErrorContext(ctx, "failed to evict session",
		"error", err, "sid", target.SID, "reason", string(reason))

	if e.auditor != nil {
		_ = e.auditor.LogError(ctx, "session.evict", err,
			audit.WithUser(target.UserID.String()),
			audit.WithSession(target.SID),
			audit.WithMetadata(map[string]any{"reason": string(reason)}),
		)
	}
}
