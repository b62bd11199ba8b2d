package app

import (
	"net/http"
	"sync/atomic"
)

// healthHandler serves liveness and readiness probes for the HTTP
// transport.
type healthHandler struct {
	ready atomic.Bool
}

// healthz handles liveness probes.
func (h *healthHandler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyz handles readiness probes. Readiness drops before shutdown so
// load balancers drain traffic first.
func (h *healthHandler) readyz(w http.ResponseWriter, _ *http.Request) {
	if h.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
