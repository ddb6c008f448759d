package mrisync

import "time"

// ChannelState is the event history of one input channel. Zero time values
// mean "never happened". All timestamps come from the session clock, captured
// before the line scan of the poll that produced them.
type ChannelState struct {
	// FirstEvent is the first time the channel was ever observed active.
	// Set at most once, cleared only by closing the session.
	FirstEvent time.Time `json:"first_event"`

	// LastEvent is the most recent counted (debounced) event.
	LastEvent time.Time `json:"last_event"`

	// CurrentEvent is set only when a counted event happened on the most
	// recent poll; it is cleared at the start of every poll. When set it
	// always equals LastEvent, so callers can tell "just fired" from
	// "fired at some point" without double-reporting across polls.
	CurrentEvent time.Time `json:"current_event"`

	// LastLevel is the logical (post-inversion) level seen on the
	// previous poll. Starts inactive.
	LastLevel bool `json:"last_level"`

	// Events counts debounced events since the session opened. Moves by
	// at most one per poll.
	Events uint64 `json:"events"`

	// MinInterval, when non-zero, gates counting: an edge closer than
	// this to the previous counted event is ignored. Safety net for
	// bouncy hardware, zero for clean TTL lines.
	MinInterval time.Duration `json:"min_interval,omitempty"`
}

// Snapshot is a copy of the whole session history plus the time it was taken.
type Snapshot struct {
	Taken     time.Time      `json:"taken"`
	Emulating bool           `json:"emulating"`
	Channels  []ChannelState `json:"channels"`
}
