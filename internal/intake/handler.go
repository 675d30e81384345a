package intake

import (
	"io"
	"net/http"

	"github.com/go-logr/logr"
)

// Handler is the HTTP entrypoint registry webhooks POST to. It only
// parses and enqueues; all matching and reconcile fan-out happens in
// Dispatcher.Run, off the request goroutine.
type Handler struct {
	Dispatcher *Dispatcher
	Log        logr.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "reading request body failed", http.StatusBadRequest)
		return
	}

	ev, err := ParsePayload(body)
	if err != nil {
		h.Log.V(1).Info("unrecognized webhook payload", "error", err.Error())
		http.Error(w, "unrecognized payload", http.StatusUnprocessableEntity)
		return
	}

	h.Dispatcher.Enqueue(ev)
	w.WriteHeader(http.StatusAccepted)
}
