// Package mrisync synchronizes experiment control with MRI scanner hardware:
// it monitors the volume-acquisition trigger line and subject button-box
// lines as debounced, timestamped events, and drives output lines to trigger
// connected recording devices. Without supported hardware it falls back,
// loudly, to a software emulation so experiment code runs at any desk.
package mrisync

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/MRC-CBU/mrisync/drivers"
	"github.com/MRC-CBU/mrisync/mqtt"
	"github.com/MRC-CBU/mrisync/telemetry"
)

const defaultBoxName = "mrisync"
const statusTopic = "mrisync/status"

// SyncBox is the wiring root: one struct, unmarshalled straight from the
// config file, owning the drivers, the sessions, and the event fanout.
// Library callers who poll or wait on the input session themselves must not
// also Run the box; the session is single-threaded by contract.
type SyncBox struct {
	Name string

	Input  *InputSettings
	Output *OutputSettings

	Gpio  *drivers.GpIO
	McpIO *drivers.McpIO
	Cdev  *drivers.CdevIO
	Emu   *drivers.EmuIO

	MqttBroker string
	StatusAddr string
	Influx     *telemetry.InfluxRecorder

	input  *InputSession
	output *OutputSession

	mqttClient *mqtt.MqttClient
	sinks      []EventSink
	status     *StatusServer
	ticker     *time.Ticker
	logger     *log.Logger
	lastCounts []uint64
	emuClaimed bool
}

// InputSettings is the config-file form of an InputConfig; durations are
// strings in time.ParseDuration syntax.
type InputSettings struct {
	Driver       string   `json:"driver" yaml:"driver"`
	Lines        []uint16 `json:"lines" yaml:"lines"`
	Interval     string   `json:"interval" yaml:"interval"`
	MinIntervals []string `json:"min_intervals" yaml:"min_intervals"`
	WaitQuantum  string   `json:"wait_quantum" yaml:"wait_quantum"`
	PulseWidth   string   `json:"pulse_width" yaml:"pulse_width"`
}

// SessionConfig parses the settings into a ready InputConfig.
func (is *InputSettings) SessionConfig() (cfg InputConfig, err error) {
	cfg.Lines = is.Lines

	cfg.Interval, err = parseOptionalDuration(is.Interval)
	if err != nil {
		return cfg, errors.Wrap(err, "bad input interval")
	}
	cfg.WaitQuantum, err = parseOptionalDuration(is.WaitQuantum)
	if err != nil {
		return cfg, errors.Wrap(err, "bad wait quantum")
	}
	cfg.PulseWidth, err = parseOptionalDuration(is.PulseWidth)
	if err != nil {
		return cfg, errors.Wrap(err, "bad pulse width")
	}

	for _, mi := range is.MinIntervals {
		parsed, err := parseOptionalDuration(mi)
		if err != nil {
			return cfg, errors.Wrap(err, "bad min interval")
		}
		cfg.MinIntervals = append(cfg.MinIntervals, parsed)
	}

	return cfg, nil
}

// OutputSettings is the config-file form of an OutputConfig.
type OutputSettings struct {
	Driver string   `json:"driver" yaml:"driver"`
	Lines  []uint16 `json:"lines" yaml:"lines"`
}

func parseOptionalDuration(raw string) (time.Duration, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func (sb *SyncBox) driverByName(name string) drivers.LineDriver {
	switch strings.ToLower(name) {
	case "gpio":
		if sb.Gpio != nil {
			return sb.Gpio
		}
	case "mcpio":
		if sb.McpIO != nil {
			return sb.McpIO
		}
	case "cdev":
		if sb.Cdev != nil {
			return sb.Cdev
		}
	case "emu":
		// The configured emu instance serves one session; any further
		// emu session gets its own, handles are never shared.
		if sb.Emu != nil && !sb.emuClaimed {
			sb.emuClaimed = true
			return sb.Emu
		}
		return &drivers.EmuIO{}
	}

	return nil
}

// OpenSessions sets up the configured sessions, the telemetry sinks, the
// MQTT client and the status server. Driver acquisition failures do not fail
// the call; they drop the affected session into emulation with a loud
// warning, per the session fallback rule.
func (sb *SyncBox) OpenSessions(ctx context.Context) (err error) {
	if len(sb.Name) == 0 {
		sb.Name = defaultBoxName
	}
	if sb.logger == nil {
		sb.logger = log.NewWithOptions(os.Stderr, log.Options{
			Prefix: "SyncBox 🧲: ",
			Level:  log.GetLevel(),
		})
	}
	if sb.Input == nil && sb.Output == nil {
		return errors.Wrap(ErrInvalidParameter, "neither input nor output session configured")
	}
	if sb.Input != nil && sb.Output != nil && len(sb.Input.Driver) > 0 &&
		strings.EqualFold(sb.Input.Driver, sb.Output.Driver) && !strings.EqualFold(sb.Input.Driver, "emu") {
		return errors.Wrap(ErrInvalidParameter, "input and output sessions must own distinct drivers")
	}

	// Re-opening implies reset: an earlier session must give its handle
	// back before a new one is acquired.
	if sb.input != nil {
		if err := sb.input.Close(); err != nil {
			return errors.Wrap(err, "failed to close previous input session")
		}
		sb.input = nil
	}
	if sb.output != nil {
		if err := sb.output.Close(); err != nil {
			return errors.Wrap(err, "failed to close previous output session")
		}
		sb.output = nil
	}
	sb.emuClaimed = false

	if sb.Input != nil {
		cfg, err := sb.Input.SessionConfig()
		if err != nil {
			return err
		}
		sb.input, err = OpenInput(ctx, sb.driverByName(sb.Input.Driver), cfg)
		if err != nil {
			return errors.Wrap(err, "failed to open input session")
		}
		sb.lastCounts = make([]uint64, sb.input.ChannelCount())
	}

	if sb.Output != nil {
		sb.output, err = OpenOutput(ctx, sb.driverByName(sb.Output.Driver), OutputConfig{Lines: sb.Output.Lines})
		if err != nil {
			return errors.Wrap(err, "failed to open output session")
		}
	}

	sb.sinks = []EventSink{&logEventSink{logger: sb.logger}}

	if len(sb.MqttBroker) > 0 {
		if err := sb.initMqtt(); err != nil {
			return errors.Wrap(err, "failed to init mqtt")
		}
	}

	if sb.Influx != nil {
		if err := sb.Influx.Setup(); err != nil {
			return errors.Wrap(err, "failed to setup influx recorder")
		}
		sb.sinks = append(sb.sinks, &influxEventSink{recorder: sb.Influx})
	}

	if len(sb.StatusAddr) > 0 {
		sb.status = newStatusServer(sb.StatusAddr, sb)
		sb.status.start()
		sb.logger.Info("status server listening", "addr", sb.StatusAddr)
	}

	return nil
}

func (sb *SyncBox) initMqtt() error {
	mc, err := mqtt.NewMqttClient(sb.MqttBroker, sb.Name)
	if err != nil {
		return errors.Wrap(err, "failed to create mqtt client")
	}

	sb.mqttClient = mc

	// Only the emulated adapter listens inbound (fake key injection).
	mqttHandlers := []mqtt.MqttHandler{}
	if sb.input != nil && sb.input.Emu() != nil {
		mqttHandlers = append(mqttHandlers, sb.input.Emu().SetMqtt(mc)...)
	}

	err = mc.Connect(mqttHandlers)
	if err != nil {
		return errors.Wrap(err, "failed to connect to mqtt broker")
	}

	sb.sinks = append(sb.sinks, &mqttEventSink{pub: mc})
	return nil
}

// InputSession returns the open input session, nil before OpenSessions.
func (sb *SyncBox) InputSession() *InputSession {
	return sb.input
}

// OutputSession returns the open output session, nil before OpenSessions.
func (sb *SyncBox) OutputSession() *OutputSession {
	return sb.output
}

// Run polls the input session on every tick and fans counted events out to
// the sinks. Blocks until the context is done.
func (sb *SyncBox) Run(ctx context.Context, interval time.Duration) error {
	if sb.input == nil {
		return errors.Wrap(ErrInvalidParameter, "nothing to run without an input session")
	}

	sb.ticker = time.NewTicker(interval)
	defer sb.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sb.ticker.C:
			if err := sb.syncOnce(); err != nil {
				sb.logger.Error("sync tick failed", "err", err)
			}
		}
	}
}

// syncOnce is one tick of the Run loop: poll, diff event counts, fan out.
func (sb *SyncBox) syncOnce() error {
	if err := sb.input.Poll(); err != nil {
		return err
	}

	snap := sb.input.Snapshot()
	fired := false
	for i, ch := range snap.Channels {
		if ch.Events <= sb.lastCounts[i] {
			continue
		}
		sb.lastCounts[i] = ch.Events
		fired = true

		ev := Event{
			Channel:  i,
			Time:     ch.LastEvent,
			Count:    ch.Events,
			Emulated: snap.Emulating,
		}
		for _, sink := range sb.sinks {
			if err := sink.Record(ev); err != nil {
				sb.logger.Warn("event sink failed", "channel", i, "err", err)
			}
		}
	}

	if fired && sb.mqttClient != nil {
		sb.publishStatus(snap)
	}

	return nil
}

func (sb *SyncBox) publishStatus(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		sb.logger.Warn("failed to marshal status", "err", err)
		return
	}
	if err := sb.mqttClient.PublishRetain(statusTopic, payload); err != nil {
		sb.logger.Warn("failed to publish status", "err", err)
	}
}

// PrintLineStatus dumps the active sessions and their line groups, the
// startup sanity check an operator eyeballs before a scan.
func (sb *SyncBox) PrintLineStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== active sync sessions ===")

	printSession := func(kind string, driver drivers.LineDriver, emulating bool) {
		fmt.Fprintln(writer, "________")
		fmt.Fprintf(writer, "| %s session, driver: %s, emulating: %v\n", kind, driver, emulating)
		inputs, outputs := driver.GetAllLines()
		fmt.Fprintf(writer, "| in lines: ")
		for _, line := range inputs {
			fmt.Fprintf(writer, "%d, ", line)
		}
		fmt.Fprintf(writer, "\n| out lines: ")
		for _, line := range outputs {
			fmt.Fprintf(writer, "%d, ", line)
		}
		fmt.Fprintln(writer)
		fmt.Fprintln(writer, "--------")
	}

	if sb.input != nil {
		printSession("input", sb.input.Driver(), sb.input.Emulating())
	}
	if sb.output != nil {
		printSession("output", sb.output.Driver(), sb.output.Emulating())
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

// Close shuts everything down: sessions first, then the surfaces.
func (sb *SyncBox) Close() error {
	var closeErrs []error

	if sb.input != nil {
		closeErrs = append(closeErrs, sb.input.Close())
	}
	if sb.output != nil {
		closeErrs = append(closeErrs, sb.output.Close())
	}

	if sb.mqttClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		closeErrs = append(closeErrs, sb.mqttClient.Disconnect(ctx))
	}

	if sb.Influx != nil {
		closeErrs = append(closeErrs, sb.Influx.Close())
	}

	if sb.status != nil {
		closeErrs = append(closeErrs, sb.status.close())
	}

	return goerrors.Join(closeErrs...)
}
