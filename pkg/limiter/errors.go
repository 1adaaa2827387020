package limiter

import "errors"

var (
	// ErrMaxNotANumber indicates a submitted max-sessions value is not numeric
	ErrMaxNotANumber = errors.New("limiter.max_not_a_number")

	// ErrNegativeMax indicates a submitted max-sessions value is negative
	ErrNegativeMax = errors.New("limiter.negative_max")

	// ErrInvalidMode indicates an unknown policy mode
	ErrInvalidMode = errors.New("limiter.invalid_mode")

	// ErrInvalidSeverity indicates an unknown message severity
	ErrInvalidSeverity = errors.New("limiter.invalid_severity")

	// ErrNoActor indicates the request context carries no actor
	ErrNoActor = errors.New("limiter.no_actor")
)
