package router

import "errors"

var (
	// ErrUnknownContext a context name outside the configured set
	ErrUnknownContext = errors.New("unknown context")
	// ErrCompletionUnavailable the completion service failed or returned an unusable reply
	ErrCompletionUnavailable = errors.New("completion unavailable")
	// ErrRoutingLoop a single turn switched contexts more often than allowed
	ErrRoutingLoop = errors.New("routing loop")
	// ErrNothingToRetry Retry was called without a failed turn
	ErrNothingToRetry = errors.New("no failed turn to retry")
	// ErrSessionNotFound unknown session id
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidConfig the routing table is inconsistent
	ErrInvalidConfig = errors.New("invalid router config")
)
