//go:build linux

package drivers

import (
	"context"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const cdevDriverName = "cdev"
const defaultCdevChip = "gpiochip0"

// CdevIO uses the Linux GPIO character device. Unlike GpIO it does not poke
// BCM registers directly, so it works on any board the kernel knows about,
// and the whole line group is scanned in a single uAPI call.
type CdevIO struct {
	Chip          string
	InvertOutputs bool

	chip     *gpiocdev.Chip
	inLines  *gpiocdev.Lines
	outLines *gpiocdev.Lines
	inputs   []uint16
	outputs  []uint16
	scratch  []int

	isReady bool
}

func (cd *CdevIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	chipName := cd.Chip
	if chipName == "" {
		chipName = defaultCdevChip
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	cd.chip = chip

	if len(inputs) > 0 {
		offsets := make([]int, len(inputs))
		for i, pin := range inputs {
			offsets[i] = int(pin)
		}
		cd.inLines, err = chip.RequestLines(offsets, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			chip.Close()
			return fmt.Errorf("request input lines %v: %w", inputs, err)
		}
	}

	if len(outputs) > 0 {
		offsets := make([]int, len(outputs))
		idle := make([]int, len(outputs))
		for i, pin := range outputs {
			offsets[i] = int(pin)
			idle[i] = cd.idleLevel()
		}
		cd.outLines, err = chip.RequestLines(offsets, gpiocdev.AsOutput(idle...))
		if err != nil {
			if cd.inLines != nil {
				cd.inLines.Close()
			}
			chip.Close()
			return fmt.Errorf("request output lines %v: %w", outputs, err)
		}
	}

	cd.inputs = inputs
	cd.outputs = outputs
	cd.scratch = make([]int, len(inputs))
	cd.isReady = true
	return nil
}

func (cd *CdevIO) idleLevel() int {
	if cd.InvertOutputs {
		return 1
	}
	return 0
}

func (cd *CdevIO) SetMqtt(publisher mqtt.Publisher) (topics []mqtt.MqttHandler) {
	return
}

func (cd *CdevIO) String() string {
	return cdevDriverName
}

func (cd *CdevIO) IsReady() bool {
	return cd.isReady
}

func (cd *CdevIO) ReadLines() ([]bool, error) {
	if !cd.isReady || cd.inLines == nil {
		return nil, fmt.Errorf("cdev driver not ready for input")
	}

	if err := cd.inLines.Values(cd.scratch); err != nil {
		return nil, &Fault{
			Op:       "cdev line scan",
			Severity: SeverityFatal,
			Err:      err,
		}
	}

	levels := make([]bool, len(cd.scratch))
	for i, v := range cd.scratch {
		levels[i] = v != 0
	}
	return levels, nil
}

func (cd *CdevIO) WriteLines(levels []bool) error {
	if !cd.isReady || cd.outLines == nil {
		return fmt.Errorf("cdev driver not ready for output")
	}
	if len(levels) != len(cd.outputs) {
		return fmt.Errorf("cdev write expects %d levels, got %d", len(cd.outputs), len(levels))
	}

	values := make([]int, len(levels))
	for i, state := range levels {
		if cd.InvertOutputs {
			state = !state
		}
		if state {
			values[i] = 1
		}
	}

	if err := cd.outLines.SetValues(values); err != nil {
		return &Fault{
			Op:       "cdev line update",
			Severity: SeverityFatal,
			Err:      err,
		}
	}
	return nil
}

// Close returns outputs to their idle level before releasing the lines, so a
// restart never leaves a trigger line asserted at the far device.
func (cd *CdevIO) Close() error {
	cd.isReady = false

	var firstErr error
	if cd.outLines != nil {
		idle := make([]int, len(cd.outputs))
		for i := range idle {
			idle[i] = cd.idleLevel()
		}
		_ = cd.outLines.SetValues(idle)
		if err := cd.outLines.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cd.inLines != nil {
		if err := cd.inLines.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if cd.chip != nil {
		if err := cd.chip.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (cd *CdevIO) GetAllLines() (inputs []uint16, outputs []uint16) {
	inputs = append(inputs, cd.inputs...)
	outputs = append(outputs, cd.outputs...)
	return
}
