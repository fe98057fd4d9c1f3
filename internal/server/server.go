// Package server constructs the relay, runs its accept loop and spawns one
// worker goroutine per admitted connection.
package server

import (
	"context"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Server owns the registry and every worker goroutine it spawned.
type Server struct {
	cfg      Config
	registry *Registry
	relay    *Relay
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	closed    bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server from cfg. A nil cfg uses defaults.
func New(cfg *Config) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	registry := NewRegistry(sanitized.MaxClients)
	ctx, cancel := context.WithCancel(context.Background())
	origins := newOriginPolicy(sanitized.AllowedOrigins)

	return &Server{
		cfg:      sanitized,
		registry: registry,
		relay:    NewRelay(registry),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.checkOrigin,
		},
		listeners: make(map[net.Listener]struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the server's client registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Serve accepts connections on ln until ctx is cancelled, ln is closed or
// Shutdown is called; in those cases it returns nil. Accept failures are
// logged and retried.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.trackListener(ln) {
		return ErrServerClosed
	}
	defer s.untrackListener(ln)

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	log.Printf("Relay waiting for connections on %s", ln.Addr())

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			tempDelay = nextAcceptDelay(tempDelay)
			log.Printf("Accept error: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		addr := conn.RemoteAddr().String()
		log.Printf("Got connection from %s", addr)

		if _, err := s.Admit(newTCPTransport(conn), addr); errors.Is(err, ErrServerClosed) {
			return nil
		}
	}
}

// Admit registers a freshly accepted transport and starts its worker. When the
// registry is full the transport is closed without writing anything to it and
// ErrRegistryFull is returned.
func (s *Server) Admit(transport Transport, addr string) (*Client, error) {
	client := NewClient(transport, s.relay, addr)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = transport.Close()
		return nil, ErrServerClosed
	}
	if !s.registry.Add(client) {
		s.mu.Unlock()
		if err := client.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing rejected connection from %s: %v", addr, err)
		}
		log.Printf("Maximum clients (%d) reached, rejecting connection from %s", s.registry.Capacity(), addr)
		return nil, ErrRegistryFull
	}
	s.wg.Add(1)
	s.mu.Unlock()

	log.Printf("Client registered from %s. Total clients: %d", addr, s.registry.Count())

	go func() {
		defer s.wg.Done()
		client.serve(s.ctx, s.cfg.MaxMessageSize)
	}()
	return client, nil
}

// Shutdown stops every accept loop, closes all registered connections and
// waits for the workers to finish. It returns context.DeadlineExceeded when
// workers are still running after timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating relay shutdown...")

	s.mu.Lock()
	s.closed = true
	listeners := make([]net.Listener, 0, len(s.listeners))
	for ln := range s.listeners {
		listeners = append(listeners, ln)
	}
	s.mu.Unlock()

	s.cancel()

	for _, ln := range listeners {
		if err := ln.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing listener %s: %v", ln.Addr(), err)
		}
	}

	clients := s.registry.Snapshot()
	for _, client := range clients {
		if err := client.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing client connection from %s: %v", client.Addr, err)
		}
	}
	log.Printf("Closed %d client connections", len(clients))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Relay shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Relay shutdown timeout reached, some workers may still be running")
		return context.DeadlineExceeded
	}
}

func (s *Server) trackListener(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *Server) untrackListener(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, ln)
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// nextAcceptDelay backs off between failing accepts the way net/http does.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return 5 * time.Millisecond
	}
	next := prev * 2
	if next > time.Second {
		next = time.Second
	}
	return next
}
