package mrisync

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStatusEndpoints(t *testing.T) {
	clk := &fakeClock{now: testBase}
	session, _ := openScripted(t, clk, [][]bool{wire(true, false)}, InputConfig{})
	assertNoError(t, session.Poll())
	clk.advance(3 * time.Second)

	sb := &SyncBox{Name: "bench", input: session, logger: quietLogger()}
	ss := newStatusServer("127.0.0.1:0", sb)

	srv := httptest.NewServer(ss.server.Handler)
	defer srv.Close()

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		assertNoError(t, err)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("got status %d", resp.StatusCode)
		}
	})

	t.Run("status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/status")
		assertNoError(t, err)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("got status %d", resp.StatusCode)
		}

		var payload statusPayload
		assertNoError(t, json.NewDecoder(resp.Body).Decode(&payload))

		if payload.Name != "bench" {
			t.Errorf("got name %q", payload.Name)
		}
		if payload.Input == nil {
			t.Fatal("input snapshot missing")
		}
		if len(payload.Input.Channels) != 2 {
			t.Errorf("got %d channels", len(payload.Input.Channels))
		}
		if payload.Input.Channels[0].Events != 1 {
			t.Errorf("got %d trigger events", payload.Input.Channels[0].Events)
		}
		// Trigger fired at t0, status taken 3s later on a 2s interval.
		if !payload.PulseKnown || payload.Pulse != 1 {
			t.Errorf("got pulse %d (known %v), want 1", payload.Pulse, payload.PulseKnown)
		}
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		assertNoError(t, err)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("got status %d", resp.StatusCode)
		}
	})
}

func TestStatusServerStopDoesNotStrandServeLoop(t *testing.T) {
	sb := &SyncBox{Name: "bench", logger: quietLogger()}
	ss := newStatusServer("127.0.0.1:0", sb)

	ss.start()
	assertNoError(t, ss.close())

	// The serve goroutine must be able to hand back its error and exit
	// even though nothing was waiting on the channel before close.
	select {
	case err := <-ss.serverErr:
		if err == nil {
			t.Error("serve loop should report why it stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve loop still blocked after close")
	}
}
