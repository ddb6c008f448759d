package drivers

import (
	"context"
	"testing"

	"errors"
)

func assertBools(t testing.TB, got, want bool) {
	t.Helper()

	if got != want {
		t.Errorf("got %v want %v", got, want)
	}
}

func assertLineSlices(t testing.TB, got, want []uint16) {
	t.Helper()

	if len(got) != len(want) {
		t.Errorf("len(got) = %d len(want) = %d", len(got), len(want))
		return
	}

	for key, val := range got {
		if want[key] != val {
			t.Errorf("for key [%d] got: %d want: %d", key, val, want[key])
		}
	}
}

func TestMockSetup(t *testing.T) {
	md := MockLineDriver{}

	assertBools(t, md.IsReady(), false)

	err := md.Setup(context.Background(), []uint16{1, 3, 5}, []uint16{2, 4})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	assertBools(t, md.IsReady(), true)

	inputs, outputs := md.GetAllLines()
	assertLineSlices(t, inputs, []uint16{1, 3, 5})
	assertLineSlices(t, outputs, []uint16{2, 4})
}

func TestMockSetupFailure(t *testing.T) {
	md := MockLineDriver{SetupErr: errors.New("nope")}

	if err := md.Setup(context.Background(), []uint16{0}, nil); err == nil {
		t.Error("setup should fail when SetupErr is set")
	}
	assertBools(t, md.IsReady(), false)
}

func TestMockScriptConsumedThenRepeats(t *testing.T) {
	md := MockLineDriver{Script: [][]bool{{true}, {false}}}
	md.Setup(context.Background(), []uint16{0}, nil)

	first, _ := md.ReadLines()
	second, _ := md.ReadLines()
	third, _ := md.ReadLines()

	assertBools(t, first[0], true)
	assertBools(t, second[0], false)
	assertBools(t, third[0], false)

	if md.ScanCount() != 3 {
		t.Errorf("got %d scans, want 3", md.ScanCount())
	}
}

func TestMockNoScriptIdlesHigh(t *testing.T) {
	md := MockLineDriver{}
	md.Setup(context.Background(), []uint16{0, 1}, nil)

	levels, err := md.ReadLines()
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	assertBools(t, levels[0], true)
	assertBools(t, levels[1], true)

	md.ReadLines()
	if md.ScanCount() != 2 {
		t.Errorf("got %d scans, want 2", md.ScanCount())
	}
}

func TestMockRecordsWrites(t *testing.T) {
	md := MockLineDriver{}
	md.Setup(context.Background(), nil, []uint16{0, 1})

	if err := md.WriteLines([]bool{false, true}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := md.WriteLines([]bool{true}); err == nil {
		t.Error("length mismatch should fail the write")
	}

	writes := md.Writes()
	if len(writes) != 1 {
		t.Fatalf("got %d writes, want 1", len(writes))
	}
	assertBools(t, writes[0][1], true)
}

func TestMockClose(t *testing.T) {
	md := MockLineDriver{}
	md.Setup(context.Background(), []uint16{0}, nil)

	md.Close()
	assertBools(t, md.IsReady(), false)
	assertBools(t, md.WasClosed(), true)

	if _, err := md.ReadLines(); err == nil {
		t.Error("scan after close should fail")
	}
}
