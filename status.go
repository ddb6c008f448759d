package mrisync

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
)

const statusHttpTimeoutsMs = 3000

// statusPayload is what GET /status serves: everything an operator glancing
// at a browser tab needs to judge whether the session is alive and real.
type statusPayload struct {
	Name       string    `json:"name"`
	Emulating  bool      `json:"emulating"`
	Pulse      int       `json:"pulse"`
	PulseKnown bool      `json:"pulse_known"`
	Input      *Snapshot `json:"input,omitempty"`
	HasOutput  bool      `json:"has_output"`
}

// StatusServer is the embedded read-only HTTP surface of a SyncBox.
type StatusServer struct {
	box *SyncBox

	server    *http.Server
	serverErr chan error
}

func newStatusServer(addr string, box *SyncBox) *StatusServer {
	ss := &StatusServer{box: box}

	httpTimeout := statusHttpTimeoutsMs * time.Millisecond
	ss.server = &http.Server{
		Addr:              addr,
		Handler:           ss.routes(),
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	return ss
}

func (ss *StatusServer) routes() http.Handler {
	router := httprouter.New()
	router.GET("/status", ss.handleStatus)
	router.GET("/healthz", ss.handleHealthz)
	return router
}

func (ss *StatusServer) start() {
	// Buffered so the serve goroutine can exit even if nobody reads the error.
	ss.serverErr = make(chan error, 1)
	go func() {
		ss.serverErr <- ss.server.ListenAndServe()
	}()
}

func (ss *StatusServer) close() error {
	return ss.server.Close()
}

func (ss *StatusServer) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	payload := statusPayload{
		Name:      ss.box.Name,
		HasOutput: ss.box.output != nil,
	}

	if ss.box.input != nil {
		snap := ss.box.input.Snapshot()
		payload.Input = &snap
		payload.Emulating = snap.Emulating
		payload.Pulse, payload.PulseKnown = ss.box.input.PulseNumber(snap.Taken)
	} else if ss.box.output != nil {
		payload.Emulating = ss.box.output.Emulating()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (ss *StatusServer) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}
