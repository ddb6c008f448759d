package drivers

import (
	"context"
	"testing"
	"time"
)

var emuTestBase = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

// tickNow returns an injectable time source pinned to a movable instant.
func tickNow(current *time.Time) func() time.Time {
	return func() time.Time {
		return *current
	}
}

func setupEmuInput(t *testing.T, current *time.Time, interval time.Duration, lineCount int) *EmuIO {
	t.Helper()

	emu := &EmuIO{
		Interval: interval,
		Now:      tickNow(current),
	}

	lines := make([]uint16, lineCount)
	for i := range lines {
		lines[i] = uint16(i)
	}
	if err := emu.Setup(context.Background(), lines, nil); err != nil {
		t.Fatalf("emu setup failed: %v", err)
	}

	return emu
}

func scan(t *testing.T, emu *EmuIO) []bool {
	t.Helper()

	levels, err := emu.ReadLines()
	if err != nil {
		t.Fatalf("emu scan failed: %v", err)
	}
	return levels
}

func TestEmuFirstScanAllIdle(t *testing.T) {
	now := emuTestBase
	emu := setupEmuInput(t, &now, 2*time.Second, 3)

	for i, level := range scan(t, emu) {
		if !level {
			t.Errorf("line %d asserted on the first scan, task should not have started", i)
		}
	}
}

func TestEmuPulseAnchoredToSecondScan(t *testing.T) {
	now := emuTestBase
	emu := setupEmuInput(t, &now, 2*time.Second, 1)

	scan(t, emu)

	// The second scan anchors the train and lands inside the pulse.
	now = now.Add(700 * time.Millisecond)
	anchor := now
	if levels := scan(t, emu); levels[0] {
		t.Error("trigger should be asserted at the anchoring scan")
	}

	// Past the pulse width the line idles again.
	now = anchor.Add(emu.PulseWidth + time.Millisecond)
	if levels := scan(t, emu); !levels[0] {
		t.Error("trigger should idle after the pulse width")
	}

	// Exactly one interval after the anchor it fires again.
	now = anchor.Add(2 * time.Second)
	if levels := scan(t, emu); levels[0] {
		t.Error("trigger should be asserted one interval after the anchor")
	}

	// And halfway between pulses it is idle.
	now = anchor.Add(3 * time.Second)
	if levels := scan(t, emu); !levels[0] {
		t.Error("trigger should idle between pulses")
	}
}

func TestEmuKeysDriveButtonChannels(t *testing.T) {
	now := emuTestBase
	emu := setupEmuInput(t, &now, time.Hour, 3)

	scan(t, emu)
	now = now.Add(time.Second)

	emu.Keys().HoldKey("2")
	levels := scan(t, emu)
	if levels[2] {
		t.Error("held key 2 should assert channel 2")
	}
	if !levels[1] {
		t.Error("channel 1 should stay idle without its key")
	}

	emu.Keys().ReleaseKey("2")
	now = now.Add(time.Second)
	if levels := scan(t, emu); !levels[2] {
		t.Error("released key should idle channel 2")
	}
}

func TestEmuRejectsPulseWiderThanInterval(t *testing.T) {
	emu := &EmuIO{
		Interval:   20 * time.Millisecond,
		PulseWidth: 30 * time.Millisecond,
	}
	if err := emu.Setup(context.Background(), []uint16{0}, nil); err == nil {
		t.Error("pulse width beyond the interval should fail setup")
	}
}

func TestEmuOutputRecordsWrites(t *testing.T) {
	emu := &EmuIO{}
	if err := emu.Setup(context.Background(), nil, []uint16{0, 1}); err != nil {
		t.Fatalf("emu setup failed: %v", err)
	}

	if err := emu.WriteLines([]bool{true, false}); err != nil {
		t.Fatalf("emu write failed: %v", err)
	}

	written := emu.LastWritten()
	if !written[0] || written[1] {
		t.Errorf("got %v, want [true false]", written)
	}

	if err := emu.WriteLines([]bool{true}); err == nil {
		t.Error("length mismatch should fail the write")
	}
}

func TestEmuMqttKeyHandler(t *testing.T) {
	now := emuTestBase
	emu := setupEmuInput(t, &now, time.Hour, 2)

	handlers := emu.SetMqtt(nil)
	if len(handlers) != 1 {
		t.Fatalf("expected one mqtt handler, got %d", len(handlers))
	}
	if handlers[0].MqttSubscribeTopic() != EmuKeyTopic {
		t.Errorf("got topic %s, want %s", handlers[0].MqttSubscribeTopic(), EmuKeyTopic)
	}
}

func TestEmuCloseDoesNotStrandKeyServer(t *testing.T) {
	emu := &EmuIO{
		Interval: time.Hour,
		HttpAddr: "127.0.0.1:0",
		Token:    "hush",
	}
	if err := emu.Setup(context.Background(), []uint16{0, 1}, nil); err != nil {
		t.Fatalf("emu setup failed: %v", err)
	}

	if err := emu.Close(); err != nil {
		t.Fatalf("emu close failed: %v", err)
	}

	// The serve goroutine must be able to hand back its error and exit
	// even though nothing was waiting on the channel before Close.
	select {
	case err := <-emu.serverErr:
		if err == nil {
			t.Error("serve loop should report why it stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve loop still blocked after close")
	}
}
