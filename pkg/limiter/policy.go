package limiter

// Mode is the configured behaviour when the session limit is exceeded.
type Mode string

const (
	// ModeNone records the limit hit but takes no action.
	ModeNone Mode = "none"
	// ModeDropOldest silently drops the oldest excess sessions.
	ModeDropOldest Mode = "drop"
	// ModeDisallowNew prevents the newly established session.
	ModeDisallowNew Mode = "disallow"
)

// Valid reports whether m is a known policy mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeDropOldest, ModeDisallowNew:
		return true
	}
	return false
}

// Action is the outcome of a policy decision.
type Action int

const (
	// ActionAllow lets the request proceed.
	ActionAllow Action = iota
	// ActionAllowLogOnly lets the request proceed but records the limit hit.
	ActionAllowLogOnly
	// ActionEvictOldest drops the oldest excess sessions.
	ActionEvictOldest
	// ActionBlockNew denies the session that just tried to establish.
	ActionBlockNew
)

func (a Action) String() string {
	switch a {
	case ActionAllow:
		return "allow"
	case ActionAllowLogOnly:
		return "allow_log_only"
	case ActionEvictOldest:
		return "evict_oldest"
	case ActionBlockNew:
		return "block_new"
	}
	return "unknown"
}

// Verdict is the result of a policy decision. EvictCount is non-zero only
// for ActionEvictOldest.
type Verdict struct {
	Action     Action
	EvictCount int
}

// Decide is the pure limit-policy function. max == 0 means unlimited.
// Deterministic and side-effect free.
func Decide(active, max int, mode Mode) Verdict {
	if max == 0 || active <= max {
		return Verdict{Action: ActionAllow}
	}

	switch mode {
	case ModeDropOldest:
		return Verdict{Action: ActionEvictOldest, EvictCount: active - max}
	case ModeDisallowNew:
		return Verdict{Action: ActionBlockNew}
	default:
		return Verdict{Action: ActionAllowLogOnly}
	}
}
