package drivers

import (
	"context"
	"fmt"

	"github.com/racerxdl/go-mcp23017"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const mcpioDriverName = "mcpio"

// McpIO talks to an MCP23017 expander over I2C. Button boxes that leave the
// shielded room on a fibre/copper converter usually land on one of these.
// I2C reads can glitch on a noisy bus, so scan failures are classified as
// warnings and left to the session to ride out.
type McpIO struct {
	device *mcp23017.Device

	inputs  []uint8
	outputs []uint8
	isReady bool

	BusNo         uint8
	DevNo         uint8
	InvertOutputs bool
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	return mcp.isReady
}

func (mcp *McpIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) (err error) {
	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return
	}

	for _, inputPin := range inputs {
		if inputPin > 255 {
			err = fmt.Errorf("input line out of range (mcpio takes uint8 pin id)")
			return
		}
		err = mcp.device.PinMode(uint8(inputPin), mcp23017.INPUT)
		if err != nil {
			return
		}
		err = mcp.device.SetPullUp(uint8(inputPin), true)
		if err != nil {
			return
		}
		mcp.inputs = append(mcp.inputs, uint8(inputPin))
	}

	for _, outputPin := range outputs {
		if outputPin > 255 {
			err = fmt.Errorf("output line out of range (mcpio takes uint8 pin id)")
			return
		}
		err = mcp.device.PinMode(uint8(outputPin), mcp23017.OUTPUT)
		if err != nil {
			return
		}
		mcp.outputs = append(mcp.outputs, uint8(outputPin))
	}

	mcp.isReady = err == nil

	return
}

func (mcp *McpIO) SetMqtt(publisher mqtt.Publisher) (topics []mqtt.MqttHandler) {
	return
}

func (mcp *McpIO) ReadLines() ([]bool, error) {
	if !mcp.isReady {
		return nil, fmt.Errorf("mcpio driver not ready")
	}

	levels := make([]bool, len(mcp.inputs))
	for i, pin := range mcp.inputs {
		raw, err := mcp.device.DigitalRead(pin)
		if err != nil {
			return nil, &Fault{
				Op:       fmt.Sprintf("mcpio read pin %d", pin),
				Severity: SeverityWarning,
				Err:      err,
			}
		}
		levels[i] = bool(raw)
	}
	return levels, nil
}

func (mcp *McpIO) WriteLines(levels []bool) error {
	if !mcp.isReady {
		return fmt.Errorf("mcpio driver not ready")
	}
	if len(levels) != len(mcp.outputs) {
		return fmt.Errorf("mcpio write expects %d levels, got %d", len(mcp.outputs), len(levels))
	}

	for i, pin := range mcp.outputs {
		state := levels[i]
		if mcp.InvertOutputs {
			state = !state
		}
		err := mcp.device.DigitalWrite(pin, mcp23017.PinLevel(state))
		if err != nil {
			return &Fault{
				Op:       fmt.Sprintf("mcpio write pin %d", pin),
				Severity: SeverityFatal,
				Err:      err,
			}
		}
	}
	return nil
}

func (mcp *McpIO) Close() error {
	mcp.isReady = false
	if mcp.device == nil {
		return nil
	}
	for _, pin := range mcp.outputs {
		_ = mcp.device.DigitalWrite(pin, mcp23017.PinLevel(mcp.InvertOutputs))
	}
	return mcp.device.Close()
}

func (mcp *McpIO) GetAllLines() (inputs []uint16, outputs []uint16) {
	for _, input := range mcp.inputs {
		inputs = append(inputs, uint16(input))
	}

	for _, output := range mcp.outputs {
		outputs = append(outputs, uint16(output))
	}

	return
}
