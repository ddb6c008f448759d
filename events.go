package mrisync

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/MRC-CBU/mrisync/mqtt"
	"github.com/MRC-CBU/mrisync/telemetry"
)

const eventTopicPrefix = "mrisync/events"

// Event is one counted sync event as fanned out to the sinks.
type Event struct {
	Channel  int       `json:"channel"`
	Time     time.Time `json:"time"`
	Count    uint64    `json:"count"`
	Emulated bool      `json:"emulated"`
}

// EventSink receives every counted event from the SyncBox loop.
type EventSink interface {
	Record(ev Event) error
}

type mqttEventSink struct {
	pub mqtt.Publisher
}

func (ms *mqttEventSink) Record(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	return ms.pub.Publish(fmt.Sprintf("%s/%d", eventTopicPrefix, ev.Channel), payload)
}

type influxEventSink struct {
	recorder *telemetry.InfluxRecorder
}

func (is *influxEventSink) Record(ev Event) error {
	return is.recorder.RecordEvent(ev.Channel, ev.Time, ev.Count, ev.Emulated)
}

type logEventSink struct {
	logger *log.Logger
}

func (ls *logEventSink) Record(ev Event) error {
	ls.logger.Info("sync event", "channel", ev.Channel, "time", ev.Time, "count", ev.Count, "emulated", ev.Emulated)
	return nil
}
