// Package server constructs and starts the HTTP server that hosts the
// WebSocket bridge.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified address and handler.
// It sets reasonable timeout values for production use.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer serves HTTP on ln. It returns nil once the server has been shut
// down.
func StartServer(server *http.Server, ln net.Listener) error {
	log.Printf("WebSocket bridge listening on %s", ln.Addr())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer gracefully shuts down the HTTP server. Upgraded WebSocket
// connections are hijacked and are not tracked by it; Server.Shutdown closes
// those.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down WebSocket bridge...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("WebSocket bridge shutdown error: %v", err)
		return err
	}

	log.Println("WebSocket bridge shutdown completed")
	return nil
}
