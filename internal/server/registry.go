// Package server coordinates client registration, message broadcast, and
// connection cleanup for the relay via the Registry type.
package server

import "sync"

// Registry is the bounded set of clients currently eligible to receive
// broadcasts. Every read and mutation happens under mu, and mu is never held
// across network I/O.
type Registry struct {
	mu       sync.Mutex
	clients  []*Client
	capacity int
}

// NewRegistry creates an empty registry holding at most capacity clients.
// A non-positive capacity falls back to the default of 10.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = defaultMaxClients
	}
	return &Registry{
		clients:  make([]*Client, 0, capacity),
		capacity: capacity,
	}
}

// Add registers the client and reports whether there was room for it.
// A full registry is left untouched; the caller owns the rejected connection.
func (r *Registry) Add(c *Client) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.clients) >= r.capacity {
		return false
	}
	r.clients = append(r.clients, c)
	return true
}

// Remove drops the client matching c.ID by moving the last entry into its
// slot. It reports false when the client was not registered, so removing
// twice is harmless.
func (r *Registry) Remove(c *Client) bool {
	if c == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.clients {
		if existing.ID != c.ID {
			continue
		}
		last := len(r.clients) - 1
		r.clients[i] = r.clients[last]
		r.clients[last] = nil
		r.clients = r.clients[:last]
		return true
	}
	return false
}

// SnapshotExcluding returns a copy of every member except sender.
// A nil sender excludes nobody.
func (r *Registry) SnapshotExcluding(sender *Client) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		if sender != nil && c.ID == sender.ID {
			continue
		}
		snapshot = append(snapshot, c)
	}
	return snapshot
}

// Snapshot returns a copy of every member.
func (r *Registry) Snapshot() []*Client {
	return r.SnapshotExcluding(nil)
}

// Count returns the number of registered clients.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Capacity returns the maximum number of clients the registry accepts.
func (r *Registry) Capacity() int {
	return r.capacity
}
