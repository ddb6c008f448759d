package mrisync

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/MRC-CBU/mrisync/drivers"
)

func openTestOutput(t *testing.T, clk Clock, lineCount int) (*OutputSession, *drivers.MockLineDriver) {
	t.Helper()

	md := &drivers.MockLineDriver{}
	lines := make([]uint16, lineCount)
	for i := range lines {
		lines[i] = uint16(i)
	}

	session, err := OpenOutput(context.Background(), md, OutputConfig{
		Lines:  lines,
		Clock:  clk,
		Logger: quietLogger(),
	})
	assertNoError(t, err)

	return session, md
}

func assertWrite(t testing.TB, got, want []bool) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("write length %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("write[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSendWritesOneHotVector(t *testing.T) {
	session, md := openTestOutput(t, nil, 3)

	assertNoError(t, session.Send(1))

	writes := md.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected one write, got %d", len(writes))
	}
	assertWrite(t, writes[0], []bool{false, true, false})
}

func TestSendMultipleChannelsOneWrite(t *testing.T) {
	session, md := openTestOutput(t, nil, 4)

	assertNoError(t, session.Send(0, 2))

	writes := md.Writes()
	if len(writes) != 1 {
		t.Fatalf("expected a single write call, got %d", len(writes))
	}
	assertWrite(t, writes[0], []bool{true, false, true, false})
}

func TestSendSingleChannelGroup(t *testing.T) {
	session, md := openTestOutput(t, nil, 1)

	assertNoError(t, session.Send(0))
	assertWrite(t, md.Writes()[0], []bool{true})

	assertErrorIs(t, session.Send(1), ErrOutOfRange)
}

func TestSendOutOfRangeWritesNothing(t *testing.T) {
	session, md := openTestOutput(t, nil, 3)

	assertErrorIs(t, session.Send(0, 3), ErrOutOfRange)
	assertErrorIs(t, session.Send(-1), ErrOutOfRange)

	if len(md.Writes()) != 0 {
		t.Errorf("failed sends must not write, got %d writes", len(md.Writes()))
	}
}

func TestSendPulseAssertsThenClears(t *testing.T) {
	clk := &fakeClock{now: testBase}
	session, md := openTestOutput(t, clk, 2)

	width := 10 * time.Millisecond
	assertNoError(t, session.SendPulse(width, 1))

	writes := md.Writes()
	if len(writes) != 2 {
		t.Fatalf("expected assert+clear writes, got %d", len(writes))
	}
	assertWrite(t, writes[0], []bool{false, true})
	assertWrite(t, writes[1], []bool{false, false})

	if len(clk.slept) != 1 || clk.slept[0] != width {
		t.Errorf("expected one sleep of %v, got %v", width, clk.slept)
	}
}

func TestSendPulseRejectsBadWidth(t *testing.T) {
	session, _ := openTestOutput(t, &fakeClock{now: testBase}, 1)

	assertErrorIs(t, session.SendPulse(0, 0), ErrInvalidParameter)
}

func TestOutputFallbackToEmulated(t *testing.T) {
	md := &drivers.MockLineDriver{SetupErr: errors.New("no such device")}

	session, err := OpenOutput(context.Background(), md, OutputConfig{
		Lines:  []uint16{0, 1},
		Logger: quietLogger(),
	})
	assertNoError(t, err)
	defer session.Close()

	if !session.Emulating() {
		t.Error("session should report emulating after driver acquisition failure")
	}

	// Sends still succeed, just with no physical effect.
	assertNoError(t, session.Send(0))
}

func TestOutputCloseReleasesDriverExactlyOnce(t *testing.T) {
	session, md := openTestOutput(t, nil, 1)

	assertNoError(t, session.Close())
	assertNoError(t, session.Close())

	if md.CloseCount() != 1 {
		t.Errorf("driver closed %d times, want exactly once", md.CloseCount())
	}

	assertErrorIs(t, session.Send(0), ErrSessionClosed)
}
