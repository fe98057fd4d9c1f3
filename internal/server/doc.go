// Package server implements the broadcast relay: a bounded registry of live
// connections, a relay that fans each inbound chunk out to every other
// member, one worker goroutine per connection, and the accept loops for the
// TCP listener and the WebSocket bridge.
//
// The implementation is organized into specialized files for configuration,
// the registry, the relay, clients, transports and HTTP handlers.
package server
