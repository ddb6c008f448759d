package mrisync

import "github.com/pkg/errors"

// Error taxonomy of the sync sessions. Callers should test with errors.Is,
// the wrapped chain carries the call context.
var (
	// ErrInvalidParameter covers bad caller input: a non-positive
	// repetition interval, an out-of-range input channel, or a wait over
	// no channels with no deadline.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrDeviceUnavailable marks a failed hardware acquisition. It is
	// recovered internally by the emulation fallback and only shows up
	// wrapped inside the operator warning.
	ErrDeviceUnavailable = errors.New("io device unavailable")

	// ErrSessionClosed is returned by any operation on a session that was
	// closed (or never successfully opened).
	ErrSessionClosed = errors.New("session closed")

	// ErrOutOfRange marks an output channel index beyond the configured
	// line vector.
	ErrOutOfRange = errors.New("channel index out of range")
)
