package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// pairingState is one in-progress or completed pairing attempt, keyed by
// a random session ID so concurrent "adbctl pair" runs report distinct
// status.
type pairingState struct {
	SessionID   string    `json:"session_id"`
	Address     string    `json:"address"`
	Status      string    `json:"status"` // "waiting_code", "succeeded", "failed"
	Fingerprint string    `json:"fingerprint,omitempty"`
	Err         string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
}

// adminServer exposes /healthz and in-progress pairing state over chi,
// grounded on cmd/relay-server/admin.go's small status-API pattern but
// using chi's router instead of the teacher's bespoke mux since spec.md's
// domain stack calls for exercising chi here specifically.
type adminServer struct {
	mu        sync.Mutex
	pairings  map[string]*pairingState
	startedAt time.Time
}

func newAdminServer() *adminServer {
	return &adminServer{
		pairings:  make(map[string]*pairingState),
		startedAt: time.Now(),
	}
}

func (a *adminServer) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", a.handleHealthz)
	r.Get("/pairings", a.handlePairings)
	return r
}

func (a *adminServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(a.startedAt).String(),
	})
}

func (a *adminServer) handlePairings(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	states := make([]*pairingState, 0, len(a.pairings))
	for _, s := range a.pairings {
		states = append(states, s)
	}
	a.mu.Unlock()
	writeJSON(w, states)
}

func (a *adminServer) track(s *pairingState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairings[s.SessionID] = s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func httpListenAndServe(addr string, handler http.Handler) error {
	return http.ListenAndServe(addr, handler)
}
