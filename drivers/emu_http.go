package drivers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
)

const emuHttpTimeoutsMs = 3000

// serveKeys starts the key-injection endpoint, so a second machine (or a
// curl one-liner) can play subject during an emulated run:
//
//	GET /key/:key/event/:event/token/:token   event = press|hold|release
func (em *EmuIO) serveKeys() error {
	handler := httprouter.New()
	handler.GET("/key/:key/event/:event/token/:token", em.handleKey)

	httpTimeout := emuHttpTimeoutsMs * time.Millisecond

	em.server = &http.Server{
		Addr:              em.HttpAddr,
		Handler:           handler,
		ReadTimeout:       httpTimeout,
		ReadHeaderTimeout: httpTimeout,
		WriteTimeout:      httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}

	// Buffered so the serve goroutine can exit even if nobody reads the error.
	em.serverErr = make(chan error, 1)

	go func() {
		em.serverErr <- em.server.ListenAndServe()
	}()

	return nil
}

func (em *EmuIO) handleKey(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	if !strings.EqualFold(p.ByName("token"), em.Token) {
		http.Error(w, "token mismatch", http.StatusUnauthorized)
		return
	}

	key := p.ByName("key")
	if _, known := em.KeyMap[key]; !known {
		http.Error(w, "key not mapped to any channel", http.StatusNotFound)
		return
	}

	switch p.ByName("event") {
	case "press":
		em.keys.Press(key)
	case "hold":
		em.keys.HoldKey(key)
	case "release":
		em.keys.ReleaseKey(key)
	default:
		http.Error(w, "unrecognized key event type", http.StatusBadRequest)
		return
	}

	fmt.Fprintf(w, "key %s: %s\n", key, p.ByName("event"))
}
