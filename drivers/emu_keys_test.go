package drivers

import (
	"testing"
	"time"
)

func newTestKeyState(current *time.Time) *KeyState {
	ks := NewKeyState()
	ks.now = tickNow(current)
	return ks
}

func TestKeyHoldAndRelease(t *testing.T) {
	now := emuTestBase
	ks := newTestKeyState(&now)

	if down, _ := ks.IsKeyDown("1"); down {
		t.Error("key down before anyone touched it")
	}

	ks.HoldKey("1")
	now = now.Add(time.Hour)
	if down, _ := ks.IsKeyDown("1"); !down {
		t.Error("held key should stay down indefinitely")
	}

	ks.ReleaseKey("1")
	if down, _ := ks.IsKeyDown("1"); down {
		t.Error("released key should be up")
	}
}

func TestMomentaryPressAutoReleases(t *testing.T) {
	now := emuTestBase
	ks := newTestKeyState(&now)

	ks.Press("3")
	if down, _ := ks.IsKeyDown("3"); !down {
		t.Error("pressed key should be down immediately")
	}

	now = now.Add(pushReleaseMs / 2 * time.Millisecond)
	if down, _ := ks.IsKeyDown("3"); !down {
		t.Error("pressed key should still be down inside the push interval")
	}

	now = now.Add(pushReleaseMs * time.Millisecond)
	if down, _ := ks.IsKeyDown("3"); down {
		t.Error("pressed key should have auto-released")
	}
}

func TestPressDoesNotShortenHold(t *testing.T) {
	now := emuTestBase
	ks := newTestKeyState(&now)

	ks.HoldKey("2")
	ks.Press("2")

	now = now.Add(time.Hour)
	if down, _ := ks.IsKeyDown("2"); !down {
		t.Error("a press must not turn a hold into a momentary push")
	}
}

func TestIsKeyDownReportsQueryTime(t *testing.T) {
	now := emuTestBase
	ks := newTestKeyState(&now)

	_, queried := ks.IsKeyDown("1")
	if !queried.Equal(emuTestBase) {
		t.Errorf("got query time %v, want %v", queried, emuTestBase)
	}
}
