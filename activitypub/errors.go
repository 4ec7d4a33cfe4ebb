package activitypub

import "errors"

// Error taxonomy of the federation engine. Handlers and resolvers wrap
// these with fmt.Errorf("...: %w", ...) so callers can errors.Is them.
var (
	// ErrNotFound means an object or actor is absent locally and could
	// not be resolved remotely
	ErrNotFound = errors.New("object not found")

	// ErrRequestLimit means the per-activity fetch budget is exhausted
	ErrRequestLimit = errors.New("request limit reached")

	// ErrObjectDeleted means the remote returned a tombstone (HTTP 410)
	ErrObjectDeleted = errors.New("object deleted")

	// ErrQueueClosed means an item was submitted after queue shutdown
	ErrQueueClosed = errors.New("delivery queue closed")

	// ErrSigningKey means the private key is absent or malformed
	ErrSigningKey = errors.New("invalid signing key")

	// ErrInvalidSignature means HTTP signature verification failed
	ErrInvalidSignature = errors.New("invalid http signature")

	// ErrUnsupportedActivity means the payload shape is not in the
	// closed set of supported activity variants
	ErrUnsupportedActivity = errors.New("unsupported activity")

	// ErrVerificationFailed means an activity-specific verify step
	// rejected the activity before any domain mutation
	ErrVerificationFailed = errors.New("activity verification failed")
)
