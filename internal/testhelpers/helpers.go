// Package testhelpers provides common utilities and helper functions for
// testing the relay.
//
// It contains dialing, reading and polling helpers shared by the server
// tests so each test file can focus on the behaviour it checks.
package testhelpers

import (
	"errors"
	"net"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DialTCP connects to addr and registers the connection for cleanup.
func DialTCP(t *testing.T, addr string) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// ReadChunk reads at most size bytes from conn, waiting up to timeout.
func ReadChunk(conn net.Conn, size int, timeout time.Duration) ([]byte, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	defer conn.SetReadDeadline(time.Time{})

	buf := make([]byte, size)
	n, err := conn.Read(buf)
	return buf[:n], err
}

// ExpectMessage reads exactly len(want) bytes from conn and fails the test if
// they differ or do not arrive within timeout.
func ExpectMessage(t *testing.T, conn net.Conn, want string, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	got := make([]byte, 0, len(want))
	for len(got) < len(want) {
		chunk, err := ReadChunk(conn, len(want)-len(got), time.Until(deadline))
		got = append(got, chunk...)
		if err != nil {
			t.Fatalf("Expected %q, got %q before error: %v", want, got, err)
		}
	}
	if string(got) != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}

// ExpectNoMessage fails the test if any byte arrives on conn within wait.
func ExpectNoMessage(t *testing.T, conn net.Conn, wait time.Duration) {
	t.Helper()

	chunk, err := ReadChunk(conn, 256, wait)
	if len(chunk) > 0 {
		t.Fatalf("Expected no message, got %q", chunk)
	}
	if err != nil && !IsTimeout(err) {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ExpectClosed fails the test unless the peer closes conn within timeout
// without sending any data.
func ExpectClosed(t *testing.T, conn net.Conn, timeout time.Duration) {
	t.Helper()

	chunk, err := ReadChunk(conn, 256, timeout)
	if len(chunk) > 0 {
		t.Fatalf("Expected closed connection, got data %q", chunk)
	}
	if err == nil || IsTimeout(err) {
		t.Fatalf("Expected connection to be closed, got %v", err)
	}
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WaitFor polls cond until it returns true or timeout elapses.
func WaitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

// ConnectWebSocket creates a WebSocket connection to the specified URL.
// It returns the connection or an error if connection fails.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}
