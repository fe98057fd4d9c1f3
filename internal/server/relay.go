package server

import (
	"context"
	"log"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Relay fans a message out to every registered client except its sender.
type Relay struct {
	registry *Registry
}

// NewRelay creates a relay that delivers to the members of registry.
func NewRelay(registry *Registry) *Relay {
	return &Relay{registry: registry}
}

// Registry returns the registry the relay delivers to.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Broadcast sends msg to every member except sender and returns how many
// deliveries succeeded. The registry lock is released before any send, so a
// stalled recipient delays only this broadcast. Failed recipients stay
// registered; their own worker removes them when its read fails.
func (r *Relay) Broadcast(ctx context.Context, msg []byte, sender *Client) int {
	targets := r.registry.SnapshotExcluding(sender)
	if len(targets) == 0 {
		return 0
	}

	span := trace.SpanFromContext(ctx)
	delivered := 0
	for _, target := range targets {
		if err := target.Send(msg); err != nil {
			log.Printf("Error sending %d bytes to %s: %v", len(msg), target.Addr, err)
			span.AddEvent("delivery failed", trace.WithAttributes(
				attribute.String("relay.peer", target.Addr),
				attribute.String("error", err.Error()),
			))
			continue
		}
		delivered++
	}

	log.Printf("Broadcast %d bytes to %d of %d clients", len(msg), delivered, len(targets))
	return delivered
}
