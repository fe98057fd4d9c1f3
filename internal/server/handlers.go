// Package server exposes the HTTP handlers of the WebSocket bridge: the
// upgrade endpoint that admits browser clients into the relay and a health
// check.
package server

import (
	"fmt"
	"log"
	"net/http"
)

// WebSocketHandler upgrades GET requests and admits the connection into the
// same registry TCP clients use. A rejected connection is closed without a
// close frame, matching the silent TCP rejection.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	log.Printf("Got WebSocket connection from %s", r.RemoteAddr)
	_, _ = s.Admit(newWSTransport(conn), r.RemoteAddr)
}

// HealthHandler reports that the relay is running and how many clients are
// connected.
func (s *Server) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay is running with %d/%d clients", s.registry.Count(), s.registry.Capacity())
}
