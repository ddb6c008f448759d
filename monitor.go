package mrisync

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/MRC-CBU/mrisync/drivers"
)

const defaultWaitQuantum = time.Millisecond
const defaultPulseWidth = 30 * time.Millisecond

// InputConfig configures a channel monitor session. Lines are driver line
// numbers, in channel order: line 0 is the acquisition trigger, the rest are
// response buttons.
type InputConfig struct {
	Lines []uint16

	// Interval is the nominal repetition time of the acquisition trigger
	// (the TR). Drives the pulse-number estimate and the emulated pulse
	// train. Must be positive.
	Interval time.Duration

	// MinIntervals optionally sets a per-channel duration gate; empty
	// disables gating everywhere, otherwise it must match Lines.
	MinIntervals []time.Duration

	// WaitQuantum is the sleep between polls inside WaitFor. It must stay
	// below PulseWidth or the wait loop could sleep through a pulse.
	WaitQuantum time.Duration

	// PulseWidth is the shortest pulse the session must not miss; also
	// the width of the emulated trigger pulse.
	PulseWidth time.Duration

	Logger *log.Logger
	Clock  Clock
}

// InputSession is the channel monitor: it owns the open line driver and the
// per-channel event history, and turns raw line scans into debounced,
// timestamped events. One logical flow of control only; the session does no
// internal locking and must not be shared between goroutines.
type InputSession struct {
	driver   drivers.LineDriver
	emu      *drivers.EmuIO
	clock    Clock
	logger   *log.Logger
	channels []ChannelState

	interval   time.Duration
	quantum    time.Duration
	pulseWidth time.Duration

	emulating bool
	closed    bool
}

// WaitResult is what a bounded wait hands back.
type WaitResult struct {
	// EventTimes is aligned with the requested channels; a zero time
	// means that channel produced no event on the final poll.
	EventTimes []time.Time

	// Pulse is the dead-reckoned acquisition pulse number, valid only
	// when PulseKnown is set (the trigger has been seen at least once).
	Pulse      int
	PulseKnown bool

	State Snapshot
}

// OpenInput acquires the driver and starts a monitor session. If the driver
// cannot be acquired the session falls back to an emulated adapter: the
// caller still gets a working session and a nil error, but the fallback is
// shouted at the operator because emulated triggers during a real scan are
// dangerously easy to miss.
func OpenInput(ctx context.Context, driver drivers.LineDriver, cfg InputConfig) (*InputSession, error) {
	if cfg.Interval <= 0 {
		return nil, errors.Wrapf(ErrInvalidParameter, "repetition interval must be positive, got %v", cfg.Interval)
	}
	if len(cfg.Lines) == 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "no input lines configured")
	}
	if len(cfg.MinIntervals) > 0 && len(cfg.MinIntervals) != len(cfg.Lines) {
		return nil, errors.Wrapf(ErrInvalidParameter, "got %d min intervals for %d lines", len(cfg.MinIntervals), len(cfg.Lines))
	}

	s := &InputSession{
		driver:     driver,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
		interval:   cfg.Interval,
		quantum:    cfg.WaitQuantum,
		pulseWidth: cfg.PulseWidth,
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.logger == nil {
		s.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "SyncInput 🧲: ",
			Level:  log.GetLevel(),
		})
	}
	if s.quantum == 0 {
		s.quantum = defaultWaitQuantum
	}
	if s.pulseWidth == 0 {
		s.pulseWidth = defaultPulseWidth
	}
	if s.quantum <= 0 || s.quantum > s.pulseWidth {
		return nil, errors.Wrapf(ErrInvalidParameter, "wait quantum %v must be positive and no longer than the %v pulse width", s.quantum, s.pulseWidth)
	}

	var acquireErr error
	if driver == nil {
		acquireErr = errors.Wrap(ErrDeviceUnavailable, "no input driver configured")
	} else {
		acquireErr = driver.Setup(ctx, cfg.Lines, nil)
	}
	if acquireErr != nil {
		s.warnEmulationFallback(acquireErr)
		emu := &drivers.EmuIO{Interval: cfg.Interval, PulseWidth: s.pulseWidth}
		if err := emu.Setup(ctx, cfg.Lines, nil); err != nil {
			return nil, errors.Wrap(err, "emulated adapter setup failed")
		}
		s.driver = emu
		s.emu = emu
		s.emulating = true
	} else if emu, ok := driver.(*drivers.EmuIO); ok {
		if emu.Interval == 0 {
			emu.Interval = cfg.Interval
		}
		s.emu = emu
		s.emulating = true
	}

	s.channels = make([]ChannelState, len(cfg.Lines))
	for i := range cfg.MinIntervals {
		s.channels[i].MinInterval = cfg.MinIntervals[i]
	}

	s.logger.Info("input session open", "channels", len(s.channels), "interval", s.interval, "driver", s.driver.String())
	return s, nil
}

func (s *InputSession) warnEmulationFallback(cause error) {
	s.logger.Error("##################################################")
	s.logger.Error("## NO INPUT HARDWARE - RUNNING EMULATED LINES   ##")
	s.logger.Error("## Trigger pulses and button presses are FAKE.  ##")
	s.logger.Error("## Do not use this session for a real scan.     ##")
	s.logger.Error("##################################################")
	s.logger.Error("emulation fallback", "cause", cause)
}

// Emulating reports whether the session runs on the emulated adapter,
// whether by fallback or by explicit choice.
func (s *InputSession) Emulating() bool {
	return s.emulating
}

// Emu returns the emulated adapter backing the session, or nil when the
// session runs on real hardware. Used to feed fake key presses.
func (s *InputSession) Emu() *drivers.EmuIO {
	return s.emu
}

// Poll performs one atomic sampling step: scan all lines once, detect edges,
// update the history. Never blocks beyond the driver's own scan call.
func (s *InputSession) Poll() error {
	if s.closed {
		return errors.Wrap(ErrSessionClosed, "poll")
	}

	// Timestamp first: scan latency must not bias event times backward.
	timenow := s.clock.Now()

	for i := range s.channels {
		s.channels[i].CurrentEvent = time.Time{}
	}

	raw, err := s.driver.ReadLines()
	if err != nil {
		var fault *drivers.Fault
		if errors.As(err, &fault) && fault.Severity == drivers.SeverityWarning {
			s.logger.Warn("line scan fault, keeping previous levels", "err", err)
			return nil
		}
		return errors.Wrap(err, "line scan failed")
	}
	if len(raw) != len(s.channels) {
		return errors.Errorf("line scan returned %d levels for %d channels", len(raw), len(s.channels))
	}

	for i := range s.channels {
		ch := &s.channels[i]

		// Wire convention: lines idle high, asserted low. This is the
		// one place raw levels become logical "active".
		active := !raw[i]

		switch {
		case ch.FirstEvent.IsZero() && active:
			// The very first active sample always counts, even
			// though it cannot satisfy an edge test.
			ch.FirstEvent = timenow
			ch.LastEvent = timenow
			ch.CurrentEvent = timenow
			ch.Events++
		case !ch.LastLevel && active:
			if ch.MinInterval == 0 || timenow.Sub(ch.LastEvent) >= ch.MinInterval {
				ch.LastEvent = timenow
				ch.CurrentEvent = timenow
				ch.Events++
			}
		}

		ch.LastLevel = active
	}

	return nil
}

// WaitFor blocks until one of the requested channels produces a counted
// event, or until deadline, whichever comes first. A zero deadline means
// unbounded, which is only allowed with a non-empty channel set. With release
// set it instead waits until every requested channel reads inactive (button
// released). Cancellation is deadline-only; the loop is a cooperative
// poll/sleep cycle, not a parallel wait.
func (s *InputSession) WaitFor(channels []int, deadline time.Time, release bool) (WaitResult, error) {
	if s.closed {
		return WaitResult{}, errors.Wrap(ErrSessionClosed, "wait")
	}
	if len(channels) == 0 && deadline.IsZero() {
		return WaitResult{}, errors.Wrap(ErrInvalidParameter, "unbounded wait over no channels can never return")
	}
	for _, c := range channels {
		if c < 0 || c >= len(s.channels) {
			return WaitResult{}, errors.Wrapf(ErrInvalidParameter, "wait channel %d outside 0..%d", c, len(s.channels)-1)
		}
	}

	// One poll happens unconditionally, so a deadline already in the past
	// still yields a fresh sample.
	for {
		if err := s.Poll(); err != nil {
			return WaitResult{}, err
		}
		if s.waitSatisfied(channels, release) {
			break
		}
		if !deadline.IsZero() && !s.clock.Now().Before(deadline) {
			break
		}
		s.clock.Sleep(s.quantum)
	}

	result := WaitResult{
		EventTimes: make([]time.Time, len(channels)),
		State:      s.Snapshot(),
	}
	for i, c := range channels {
		result.EventTimes[i] = s.channels[c].CurrentEvent
	}
	result.Pulse, result.PulseKnown = s.PulseNumber(result.State.Taken)

	return result, nil
}

func (s *InputSession) waitSatisfied(channels []int, release bool) bool {
	if len(channels) == 0 {
		return false
	}

	if release {
		for _, c := range channels {
			if s.channels[c].LastLevel {
				return false
			}
		}
		return true
	}

	for _, c := range channels {
		if !s.channels[c].CurrentEvent.IsZero() {
			return true
		}
	}
	return false
}

// PulseNumber estimates the acquisition pulse count at the given instant by
// dead reckoning from the first observed trigger and the nominal interval.
// Never a ground-truth count; false until the trigger has fired once.
func (s *InputSession) PulseNumber(now time.Time) (int, bool) {
	if len(s.channels) == 0 {
		return 0, false
	}
	first := s.channels[0].FirstEvent
	if first.IsZero() {
		return 0, false
	}
	return int(now.Sub(first) / s.interval), true
}

// Snapshot copies the whole channel history for callers outside the session.
func (s *InputSession) Snapshot() Snapshot {
	snap := Snapshot{
		Taken:     s.clock.Now(),
		Emulating: s.emulating,
		Channels:  make([]ChannelState, len(s.channels)),
	}
	copy(snap.Channels, s.channels)
	return snap
}

// Driver exposes the adapter backing the session, for status printing.
func (s *InputSession) Driver() drivers.LineDriver {
	return s.driver
}

// ChannelCount returns the number of configured input channels.
func (s *InputSession) ChannelCount() int {
	return len(s.channels)
}

// Close releases the driver exactly once and clears the history. Closing an
// already closed session is a no-op that only mentions there was nothing to
// stop.
func (s *InputSession) Close() error {
	if s.closed {
		s.logger.Info("nothing to stop, input session already closed")
		return nil
	}
	s.closed = true
	s.channels = nil

	return errors.Wrap(s.driver.Close(), "closing input driver")
}
