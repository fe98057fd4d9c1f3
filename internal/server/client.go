// Package server manages individual relay clients, handling the read loop,
// serialized writes, and lifecycle control for each connection.
package server

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/Tyrowin/gorelay/internal/server")

// Client represents one live connection in the relay. It is shared by the
// registry, which makes it reachable for broadcasts, and by its own worker
// goroutine, which reads from it and finally closes it.
type Client struct {
	ID   uuid.UUID
	Addr string

	transport Transport
	relay     *Relay

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewClient wraps transport in a Client with a fresh identifier. Messages it
// reads are handed to relay.
func NewClient(transport Transport, relay *Relay, addr string) *Client {
	return &Client{
		ID:        uuid.New(),
		Addr:      addr,
		transport: transport,
		relay:     relay,
	}
}

// Send writes msg in full. Concurrent broadcasts to the same client are
// serialized so their bytes never interleave.
func (c *Client) Send(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.transport.Write(msg)
}

// Close releases the transport. Only the first call reaches it.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}

// serve runs the worker until the peer closes or the transport fails, then
// closes the transport and leaves the registry.
func (c *Client) serve(ctx context.Context, bufSize int) {
	ctx, span := tracer.Start(ctx, "relay.session", trace.WithAttributes(
		attribute.String("relay.peer", c.Addr),
		attribute.String("relay.client_id", c.ID.String()),
	))
	defer span.End()

	defer func() {
		if err := c.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection from %s: %v", c.Addr, err)
		}
		c.relay.Registry().Remove(c)
		log.Printf("Client %s disconnected. Total clients: %d", c.Addr, c.relay.Registry().Count())
	}()

	buf := make([]byte, bufSize)
	for {
		n, err := c.transport.Read(buf)
		if n > 0 {
			c.processMessage(ctx, buf[:n])
		}
		if err != nil {
			c.handleReadError(err)
			return
		}
	}
}

// processMessage broadcasts exactly the bytes that were read. The buffer is
// reused after this returns, which is safe because delivery is synchronous.
func (c *Client) processMessage(ctx context.Context, msg []byte) {
	log.Printf("Received %d bytes from %s: %q", len(msg), c.Addr, msg)
	trace.SpanFromContext(ctx).AddEvent("message", trace.WithAttributes(
		attribute.Int("relay.bytes", len(msg)),
	))
	c.relay.Broadcast(ctx, msg, c)
}

// handleReadError logs why the read loop is ending.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		log.Printf("Connection closed by client %s", c.Addr)
	case isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.Addr, err)
	default:
		log.Printf("Receive error from %s: %v", c.Addr, err)
	}
}
