// Package telemetry holds the event sinks that ship session history off the
// control machine.
package telemetry

import (
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
)

const syncEventMeasurement = "sync_event"

// InfluxRecorder writes one point per counted sync event through the
// non-blocking write API, so a slow or absent InfluxDB never stalls the
// polling loop.
type InfluxRecorder struct {
	Host         string `json:"host" yaml:"host"`
	Organization string `json:"organization" yaml:"organization"`
	Bucket       string `json:"bucket" yaml:"bucket"`
	Token        string `json:"token" yaml:"token"`

	client   influxdb2.Client
	writeApi api.WriteAPI
	ready    bool
}

func (ir *InfluxRecorder) Setup() error {
	if len(ir.Host) == 0 || len(ir.Bucket) == 0 {
		return errors.New("influx recorder needs host and bucket")
	}

	ir.client = influxdb2.NewClient(ir.Host, ir.Token)
	ir.writeApi = ir.client.WriteAPI(ir.Organization, ir.Bucket)

	// Write errors arrive async; they are worth a line, nothing more.
	go func() {
		for writeErr := range ir.writeApi.Errors() {
			fmt.Println("influx write error:", writeErr)
		}
	}()

	ir.ready = true
	return nil
}

func (ir *InfluxRecorder) IsReady() bool {
	return ir.ready
}

// RecordEvent queues one event point; it never blocks.
func (ir *InfluxRecorder) RecordEvent(channel int, at time.Time, count uint64, emulated bool) error {
	if !ir.ready {
		return errors.New("influx recorder not set up")
	}

	point := influxdb2.NewPoint(syncEventMeasurement,
		map[string]string{
			"channel":  fmt.Sprint(channel),
			"emulated": fmt.Sprint(emulated),
		},
		map[string]interface{}{
			"count": int64(count),
		},
		at)
	ir.writeApi.WritePoint(point)

	return nil
}

func (ir *InfluxRecorder) Close() error {
	if !ir.ready {
		return nil
	}
	ir.ready = false

	ir.writeApi.Flush()
	ir.client.Close()
	return nil
}
