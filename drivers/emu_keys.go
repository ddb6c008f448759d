package drivers

import (
	"sync"
	"time"
)

const pushReleaseMs = 200

// KeyState stores which fake keys are currently down. It is the meeting
// point between the injection surfaces (HTTP handler, MQTT handler, TUI)
// and the emulated line scan, so it is the one place in the emulation that
// carries a lock.
type KeyState struct {
	mu        sync.Mutex
	held      map[string]time.Time
	momentary map[string]time.Time

	now func() time.Time
}

func NewKeyState() *KeyState {
	return &KeyState{
		held:      make(map[string]time.Time),
		momentary: make(map[string]time.Time),
		now:       time.Now,
	}
}

// HoldKey puts the key down until ReleaseKey.
func (ks *KeyState) HoldKey(key string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, down := ks.held[key]; !down {
		ks.held[key] = ks.now()
	}
	delete(ks.momentary, key)
}

// ReleaseKey lifts the key, whether held or mid-press.
func (ks *KeyState) ReleaseKey(key string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	delete(ks.held, key)
	delete(ks.momentary, key)
}

// Press pushes the key momentarily; it releases itself after the push
// interval without anyone having to call ReleaseKey.
func (ks *KeyState) Press(key string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, down := ks.held[key]; down {
		return
	}
	ks.momentary[key] = ks.now().Add(pushReleaseMs * time.Millisecond)
}

// IsKeyDown reports whether the key is down right now, together with the
// query time.
func (ks *KeyState) IsKeyDown(key string) (bool, time.Time) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	queried := ks.now()

	if _, down := ks.held[key]; down {
		return true, queried
	}

	until, pressed := ks.momentary[key]
	if !pressed {
		return false, queried
	}
	if queried.After(until) {
		delete(ks.momentary, key)
		return false, queried
	}
	return true, queried
}
