package mrisync

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed writing config: %v", err)
	}
	return path
}

func TestLoadConfigJson(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{
		"Name": "scanner3t",
		"MqttBroker": "mqtt://broker.local:1883",
		"StatusAddr": ":8089",
		"Input": {
			"driver": "emu",
			"lines": [17, 22, 23, 24, 25],
			"interval": "2s",
			"wait_quantum": "1ms",
			"min_intervals": ["0s", "20ms", "20ms", "20ms", "20ms"]
		},
		"Output": {
			"driver": "emu",
			"lines": [5]
		}
	}`)

	sb, err := LoadConfig(path)
	assertNoError(t, err)

	if sb.Name != "scanner3t" {
		t.Errorf("got name %q", sb.Name)
	}
	if sb.Input == nil || sb.Output == nil {
		t.Fatal("both sessions should be configured")
	}
	if len(sb.Input.Lines) != 5 || sb.Input.Lines[0] != 17 {
		t.Errorf("input lines wrong: %v", sb.Input.Lines)
	}

	cfg, err := sb.Input.SessionConfig()
	assertNoError(t, err)
	if cfg.Interval != 2*time.Second {
		t.Errorf("got interval %v", cfg.Interval)
	}
	if cfg.WaitQuantum != time.Millisecond {
		t.Errorf("got quantum %v", cfg.WaitQuantum)
	}
	if len(cfg.MinIntervals) != 5 || cfg.MinIntervals[1] != 20*time.Millisecond {
		t.Errorf("got min intervals %v", cfg.MinIntervals)
	}
}

func TestLoadConfigYaml(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
name: bench
statusaddr: ":8089"
input:
  driver: emu
  lines: [0, 1]
  interval: 2s
`)

	sb, err := LoadConfig(path)
	assertNoError(t, err)

	if sb.Name != "bench" {
		t.Errorf("got name %q", sb.Name)
	}
	if sb.StatusAddr != ":8089" {
		t.Errorf("got status addr %q", sb.StatusAddr)
	}
	if sb.Input == nil || sb.Input.Interval != "2s" {
		t.Fatalf("input settings wrong: %+v", sb.Input)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("missing file should fail")
		}
	})

	t.Run("broken json", func(t *testing.T) {
		path := writeTempConfig(t, "bad.json", `{"Name": `)
		if _, err := LoadConfig(path); err == nil {
			t.Error("broken json should fail")
		}
	})
}

func TestSessionConfigBadDuration(t *testing.T) {
	settings := InputSettings{Lines: []uint16{0}, Interval: "over 9000"}

	if _, err := settings.SessionConfig(); err == nil {
		t.Error("unparseable interval should fail")
	}
}
