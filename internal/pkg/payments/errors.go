package payments

import "errors"

var (
	// ErrAuthentication covers missing, malformed, mismatched, or stale
	// webhook signatures. Events failing authentication are never
	// persisted.
	ErrAuthentication = errors.New("webhook signature verification failed")

	// ErrMalformedEnvelope means the payload has no usable event id or
	// type, so it cannot even be deduplicated. Redelivery of the same
	// bytes cannot succeed.
	ErrMalformedEnvelope = errors.New("malformed webhook envelope")

	// ErrInvalidMetadata means the event was ingested but its checkout
	// metadata is unusable (missing user, non-positive credits). The event
	// stays unprocessed so provider redelivery can retry it.
	ErrInvalidMetadata = errors.New("invalid event metadata")

	// ErrUnknownProvider is returned for webhook paths this deployment has
	// no secret configured for.
	ErrUnknownProvider = errors.New("unknown webhook provider")
)
