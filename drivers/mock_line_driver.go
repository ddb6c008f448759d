package drivers

import (
	"context"

	"errors"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const mockLineDriverName = "mock_driver"

// MockLineDriver is the scripted test double. Each ReadLines call consumes
// the next wire-level sample from Script; once exhausted the last sample
// repeats, so a "held button" is just a script that ends held. Kept a real
// (non-test) type like the other backends, so session tests and the mock
// daemon target can share it.
type MockLineDriver struct {
	// Script holds wire-level samples (idle = true), one per scan.
	Script [][]bool

	// SetupErr makes acquisition fail, for fallback testing.
	SetupErr error

	// ReadErr, when set, is returned by every scan instead of a sample.
	ReadErr error

	inputs  []uint16
	outputs []uint16

	scanCount  int
	writes     [][]bool
	isReady    bool
	wasClosed  bool
	closeCount int
}

func (md *MockLineDriver) String() string {
	return mockLineDriverName
}

func (md *MockLineDriver) IsReady() bool {
	return md.isReady
}

func (md *MockLineDriver) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	if md.SetupErr != nil {
		return md.SetupErr
	}

	md.inputs = inputs
	md.outputs = outputs
	md.isReady = true
	return nil
}

func (md *MockLineDriver) SetMqtt(publisher mqtt.Publisher) (topics []mqtt.MqttHandler) {
	return
}

func (md *MockLineDriver) ReadLines() ([]bool, error) {
	if !md.isReady {
		return nil, errors.New("mock driver not ready")
	}
	if md.ReadErr != nil {
		return nil, md.ReadErr
	}

	index := md.scanCount
	md.scanCount++

	if len(md.Script) == 0 {
		// No script means every line idles high.
		idle := make([]bool, len(md.inputs))
		for i := range idle {
			idle[i] = true
		}
		return idle, nil
	}

	if index >= len(md.Script) {
		index = len(md.Script) - 1
	}

	sample := make([]bool, len(md.Script[index]))
	copy(sample, md.Script[index])
	return sample, nil
}

func (md *MockLineDriver) WriteLines(levels []bool) error {
	if !md.isReady {
		return errors.New("mock driver not ready")
	}
	if len(levels) != len(md.outputs) {
		return errors.New("mock write length mismatch")
	}

	written := make([]bool, len(levels))
	copy(written, levels)
	md.writes = append(md.writes, written)
	return nil
}

func (md *MockLineDriver) Close() error {
	md.isReady = false
	md.wasClosed = true
	md.closeCount++
	return nil
}

func (md *MockLineDriver) GetAllLines() (inputs []uint16, outputs []uint16) {
	inputs = append(inputs, md.inputs...)
	outputs = append(outputs, md.outputs...)
	return
}

// ScanCount reports how many scans the session performed.
func (md *MockLineDriver) ScanCount() int {
	return md.scanCount
}

// Writes returns every vector written so far, oldest first.
func (md *MockLineDriver) Writes() [][]bool {
	return md.writes
}

// WasClosed reports whether Close was called, and CloseCount how often.
func (md *MockLineDriver) WasClosed() bool {
	return md.wasClosed
}

func (md *MockLineDriver) CloseCount() int {
	return md.closeCount
}
