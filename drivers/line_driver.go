// Package drivers holds the hardware line adapters the sync sessions run on.
// Every backend exposes the same scan/update boundary: all configured input
// lines are read in one call, all configured output lines are written in one
// call. Input scans report raw wire levels - the lines are pulled up and a
// pressed button or an asserted trigger shorts to ground, so asserted = low.
// Inversion to logical "active" happens once, in the channel monitor, never
// in a driver.
package drivers

import (
	"context"
	"fmt"

	"github.com/MRC-CBU/mrisync/mqtt"
)

type LineDriver interface {
	Setup(ctx context.Context, inputs []uint16, outputs []uint16) error
	SetMqtt(publisher mqtt.Publisher) []mqtt.MqttHandler
	Close() error
	String() string
	IsReady() bool

	// ReadLines returns the wire level of every configured input line in
	// one scan, ordered as configured. High (true) is the idle pulled-up
	// state; low (false) is asserted.
	ReadLines() ([]bool, error)

	// WriteLines drives every configured output line in one update. The
	// vector is logical: true = assert. Electrical inversion, if the
	// wiring needs it, is the driver's own business.
	WriteLines(levels []bool) error

	GetAllLines() (inputs []uint16, outputs []uint16)
}

func MapAllLineDrivers() map[string]LineDriver {
	drivers := []LineDriver{
		&GpIO{},
		&McpIO{},
		&CdevIO{},
		&EmuIO{},
	}

	mapped := make(map[string]LineDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}

// Severity classifies a Fault for the session polling loop: a warning scan
// fault is logged and the poll keeps the previous levels, anything fatal is
// returned to the caller.
type Severity int

const (
	SeverityFatal Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityFatal:
		return "fatal"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Fault is a classified driver error. Adapters decide the severity of their
// own failures; nothing above them retries.
type Fault struct {
	Op       string
	Severity Severity
	Err      error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Op, f.Severity, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}
