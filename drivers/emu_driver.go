package drivers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/paho"

	"github.com/MRC-CBU/mrisync/mqtt"
)

const emuDriverName = "emu"

// EmuKeyTopic is the MQTT topic filter for injected key events; the last
// topic level is the key, the payload is press/hold/release.
const EmuKeyTopic = "mrisync/emu/key/#"

// EmuIO is the software stand-in adapter used when no real line hardware is
// present. On the input side it fabricates the acquisition trigger as a
// recurring pulse and mirrors fake key presses onto the button channels; on
// the output side it is a safe no-op that only remembers the last written
// vector. Scans report wire levels (idle high, asserted low) so the rest of
// the system cannot tell it from hardware.
type EmuIO struct {
	// Interval and PulseWidth shape the fake trigger on input line 0.
	// Interval zero disables the trigger (output-only setups).
	Interval   time.Duration
	PulseWidth time.Duration

	// KeyMap routes a key name to a button channel index. Defaults to
	// keys "1".."4" on channels 1..4.
	KeyMap map[string]int

	// HttpAddr, when set, serves the key-injection endpoint.
	Token    string
	HttpAddr string

	// Now is the injectable time source; defaults to time.Now.
	Now func() time.Time

	inputs  []uint16
	outputs []uint16
	keys    *KeyState

	reads  int
	anchor time.Time

	lastWritten []bool
	isReady     bool

	server    *http.Server
	serverErr chan error
}

func (em *EmuIO) String() string {
	return emuDriverName
}

func (em *EmuIO) IsReady() bool {
	return em.isReady
}

func (em *EmuIO) Setup(ctx context.Context, inputs []uint16, outputs []uint16) error {
	if em.Now == nil {
		em.Now = time.Now
	}
	if em.PulseWidth == 0 {
		em.PulseWidth = 30 * time.Millisecond
	}
	if len(inputs) > 0 && em.Interval > 0 && em.PulseWidth >= em.Interval {
		return fmt.Errorf("emu pulse width %v must be shorter than the %v interval", em.PulseWidth, em.Interval)
	}
	if em.KeyMap == nil {
		em.KeyMap = map[string]int{"1": 1, "2": 2, "3": 3, "4": 4}
	}

	em.inputs = inputs
	em.outputs = outputs
	em.keys = NewKeyState()
	em.keys.now = em.Now
	em.reads = 0
	em.anchor = time.Time{}
	em.lastWritten = make([]bool, len(outputs))
	em.isReady = true

	if len(em.HttpAddr) > 0 {
		return em.serveKeys()
	}
	return nil
}

// Keys exposes the fake key store so callers can press buttons in code.
func (em *EmuIO) Keys() *KeyState {
	return em.keys
}

// ReadLines fabricates one wire-level scan. The very first scan after Setup
// reports every line idle, modeling an acquisition task that has not started
// yet; the pulse train is phase-anchored to the second scan, so the trigger
// is active exactly then and every Interval after.
func (em *EmuIO) ReadLines() ([]bool, error) {
	if !em.isReady {
		return nil, fmt.Errorf("emu driver not ready")
	}

	levels := make([]bool, len(em.inputs))
	for i := range levels {
		levels[i] = true
	}

	em.reads++
	if em.reads == 1 {
		return levels, nil
	}

	now := em.Now()
	if em.anchor.IsZero() {
		em.anchor = now
	}

	if len(levels) > 0 && em.Interval > 0 {
		phase := now.Sub(em.anchor) % em.Interval
		if phase < em.PulseWidth {
			levels[0] = false
		}
	}

	for key, channel := range em.KeyMap {
		if channel <= 0 || channel >= len(levels) {
			continue
		}
		if down, _ := em.keys.IsKeyDown(key); down {
			levels[channel] = false
		}
	}

	return levels, nil
}

// WriteLines accepts the vector and does nothing physical; the copy is kept
// so tests and the status page can see what would have been sent.
func (em *EmuIO) WriteLines(levels []bool) error {
	if !em.isReady {
		return fmt.Errorf("emu driver not ready")
	}
	if len(levels) != len(em.outputs) {
		return fmt.Errorf("emu write expects %d levels, got %d", len(em.outputs), len(levels))
	}

	copy(em.lastWritten, levels)
	return nil
}

// LastWritten returns a copy of the most recent write vector.
func (em *EmuIO) LastWritten() []bool {
	written := make([]bool, len(em.lastWritten))
	copy(written, em.lastWritten)
	return written
}

func (em *EmuIO) SetMqtt(publisher mqtt.Publisher) []mqtt.MqttHandler {
	return []mqtt.MqttHandler{&emuKeyHandler{keys: em.keys}}
}

func (em *EmuIO) Close() error {
	em.isReady = false
	if em.server != nil {
		return em.server.Close()
	}
	return nil
}

func (em *EmuIO) GetAllLines() (inputs []uint16, outputs []uint16) {
	inputs = append(inputs, em.inputs...)
	outputs = append(outputs, em.outputs...)
	return
}

// emuKeyHandler feeds MQTT-injected key events into the key store.
type emuKeyHandler struct {
	keys *KeyState
}

func (eh *emuKeyHandler) MqttSubscribeTopic() string {
	return EmuKeyTopic
}

func (eh *emuKeyHandler) MqttHandle(pub *paho.Publish) {
	parts := strings.Split(pub.Topic, "/")
	key := parts[len(parts)-1]
	if len(key) == 0 {
		return
	}

	switch strings.ToLower(strings.TrimSpace(string(pub.Payload))) {
	case "hold":
		eh.keys.HoldKey(key)
	case "release":
		eh.keys.ReleaseKey(key)
	default:
		eh.keys.Press(key)
	}
}
