//go:build !linux

package drivers

import (
	"context"
	"fmt"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const cdevDriverName = "cdev"

// CdevIO needs the Linux GPIO character device; on any other platform Setup
// fails and the session falls back to emulation.
type CdevIO struct {
	Chip          string
	InvertOutputs bool
}

func (cd *CdevIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	return fmt.Errorf("cdev driver requires linux")
}

func (cd *CdevIO) SetMqtt(publisher mqtt.Publisher) (topics []mqtt.MqttHandler) {
	return
}

func (cd *CdevIO) String() string {
	return cdevDriverName
}

func (cd *CdevIO) IsReady() bool {
	return false
}

func (cd *CdevIO) ReadLines() ([]bool, error) {
	return nil, fmt.Errorf("cdev driver requires linux")
}

func (cd *CdevIO) WriteLines(levels []bool) error {
	return fmt.Errorf("cdev driver requires linux")
}

func (cd *CdevIO) Close() error {
	return nil
}

func (cd *CdevIO) GetAllLines() (inputs []uint16, outputs []uint16) {
	return
}
