package drivers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const gpioDriverName = "gpio"

// GpIO drives Raspberry Pi header pins through the mapped gpio memory.
// Input lines are pulled up, so the scan reports the raw active-low wire
// convention the monitor expects.
type GpIO struct {
	inputs  []uint8
	outputs []uint8

	InvertOutputs bool

	isReady bool
}

func (gp *GpIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to Setup gpio driver for lines: %v, %v", inputs, outputs)
	}

	for _, inPin := range inputs {
		if inPin > 255 {
			return errors.Errorf("input line out of range (gpio takes uint8 pin)")
		}
		pin := rpio.Pin(inPin)
		pin.Input()
		pin.PullUp()
		gp.inputs = append(gp.inputs, uint8(inPin))
	}

	for _, outPin := range outputs {
		if outPin > 255 {
			return errors.Errorf("output line out of range (gpio takes uint8 pin)")
		}
		pin := rpio.Pin(outPin)
		pin.Output()
		gp.outputs = append(gp.outputs, uint8(outPin))
	}

	gp.isReady = true
	return nil
}

func (gp *GpIO) SetMqtt(publisher mqtt.Publisher) (topics []mqtt.MqttHandler) {
	return
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

func (gp *GpIO) Close() error {
	if gp.isReady && len(gp.outputs) > 0 {
		clear := make([]bool, len(gp.outputs))
		_ = gp.WriteLines(clear)
	}
	gp.isReady = false
	return rpio.Close()
}

// ReadLines scans every input pin. The rpio read cannot fail once the memory
// is mapped, so the scan reduces to one pass over the pins.
func (gp *GpIO) ReadLines() ([]bool, error) {
	if !gp.isReady {
		return nil, errors.Errorf("gpio driver not ready")
	}

	levels := make([]bool, len(gp.inputs))
	for i, pin := range gp.inputs {
		levels[i] = rpio.Pin(pin).Read() == rpio.High
	}
	return levels, nil
}

func (gp *GpIO) WriteLines(levels []bool) error {
	if !gp.isReady {
		return errors.Errorf("gpio driver not ready")
	}
	if len(levels) != len(gp.outputs) {
		return errors.Errorf("gpio write expects %d levels, got %d", len(gp.outputs), len(levels))
	}

	for i, pin := range gp.outputs {
		state := levels[i]
		if gp.InvertOutputs {
			state = !state
		}
		if state {
			rpio.Pin(pin).High()
		} else {
			rpio.Pin(pin).Low()
		}
	}
	return nil
}

func (gp *GpIO) GetAllLines() (inputs []uint16, outputs []uint16) {
	for _, input := range gp.inputs {
		inputs = append(inputs, uint16(input))
	}

	for _, output := range gp.outputs {
		outputs = append(outputs, uint16(output))
	}

	return
}
