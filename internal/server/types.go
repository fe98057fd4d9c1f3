// Package server defines the transport abstraction and utility helpers that
// are shared by the registry, relay and connection workers.
package server

import (
	"errors"
	"net"
	"strings"
)

// Transport is one established bidirectional byte stream to a peer.
//
// Read returns the next chunk of at most len(p) bytes. Write sends p in full
// or returns an error. Close releases the stream and unblocks a pending Read.
type Transport interface {
	Read(p []byte) (int, error)
	Write(p []byte) error
	Close() error
}

var (
	// ErrServerClosed is returned by Serve and Admit after Shutdown has been called.
	ErrServerClosed = errors.New("relay: server closed")
	// ErrRegistryFull is returned by Admit when the connection was rejected for capacity.
	ErrRegistryFull = errors.New("relay: registry full")
)

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
