package mrisync

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/MRC-CBU/mrisync/drivers"
)

// OutputConfig configures a trigger sender session. Lines are the output
// line group, in channel order.
type OutputConfig struct {
	Lines []uint16

	Logger *log.Logger
	Clock  Clock
}

// OutputSession is the trigger sender: fire-and-forget one-hot writes to the
// output line group. No debounce, no history, no state per call beyond the
// open driver handle.
type OutputSession struct {
	driver       drivers.LineDriver
	clock        Clock
	logger       *log.Logger
	channelCount int
	emulating    bool
	closed       bool
}

// OpenOutput acquires the driver for output and starts a sender session,
// under the same emulation-fallback rule as OpenInput: acquisition failure
// yields a loudly announced no-op session, not an error.
func OpenOutput(ctx context.Context, driver drivers.LineDriver, cfg OutputConfig) (*OutputSession, error) {
	if len(cfg.Lines) == 0 {
		return nil, errors.Wrap(ErrInvalidParameter, "no output lines configured")
	}

	o := &OutputSession{
		driver:       driver,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		channelCount: len(cfg.Lines),
	}
	if o.clock == nil {
		o.clock = SystemClock
	}
	if o.logger == nil {
		o.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "SyncOutput ⚡: ",
			Level:  log.GetLevel(),
		})
	}

	var acquireErr error
	if driver == nil {
		acquireErr = errors.Wrap(ErrDeviceUnavailable, "no output driver configured")
	} else {
		acquireErr = driver.Setup(ctx, nil, cfg.Lines)
	}
	if acquireErr != nil {
		o.logger.Error("#################################################")
		o.logger.Error("## NO OUTPUT HARDWARE - TRIGGER SENDS ARE NOOP ##")
		o.logger.Error("#################################################")
		o.logger.Error("emulation fallback", "cause", acquireErr)
		emu := &drivers.EmuIO{}
		if err := emu.Setup(ctx, nil, cfg.Lines); err != nil {
			return nil, errors.Wrap(err, "emulated adapter setup failed")
		}
		o.driver = emu
		o.emulating = true
	} else if _, ok := driver.(*drivers.EmuIO); ok {
		o.emulating = true
	}

	o.logger.Info("output session open", "channels", o.channelCount, "driver", o.driver.String())
	return o, nil
}

// Emulating reports whether sends go to the no-op emulated adapter.
func (o *OutputSession) Emulating() bool {
	return o.emulating
}

// Driver exposes the adapter backing the session, for status printing.
func (o *OutputSession) Driver() drivers.LineDriver {
	return o.driver
}

// Send asserts the requested channels in one write, leaving every other
// line clear. Any index outside the configured group fails the whole call
// with ErrOutOfRange before anything is written.
func (o *OutputSession) Send(channels ...int) error {
	if o.closed {
		return errors.Wrap(ErrSessionClosed, "send")
	}

	for _, c := range channels {
		if c < 0 || c >= o.channelCount {
			return errors.Wrapf(ErrOutOfRange, "send channel %d outside 0..%d", c, o.channelCount-1)
		}
	}

	levels := make([]bool, o.channelCount)
	for _, c := range channels {
		levels[c] = true
	}

	return errors.Wrap(o.driver.WriteLines(levels), "trigger write failed")
}

// SendPulse asserts the requested channels for the given width, then clears
// the whole group. For devices that want a defined pulse rather than a
// latched level.
func (o *OutputSession) SendPulse(width time.Duration, channels ...int) error {
	if width <= 0 {
		return errors.Wrapf(ErrInvalidParameter, "pulse width must be positive, got %v", width)
	}
	if err := o.Send(channels...); err != nil {
		return err
	}

	o.clock.Sleep(width)

	return errors.Wrap(o.driver.WriteLines(make([]bool, o.channelCount)), "trigger clear failed")
}

// Close releases the driver exactly once; closing twice only logs that there
// was nothing to stop.
func (o *OutputSession) Close() error {
	if o.closed {
		o.logger.Info("nothing to stop, output session already closed")
		return nil
	}
	o.closed = true

	return errors.Wrap(o.driver.Close(), "closing output driver")
}
