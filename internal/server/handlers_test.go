package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gorelay/internal/testhelpers"
)

const testOriginURL = "http://localhost:8080"

// startBridge serves the WebSocket bridge and the TCP listener of one relay.
func startBridge(t *testing.T, cfg *Config) (*Server, string, string) {
	t.Helper()

	srv := New(cfg)
	ts := httptest.NewServer(srv.SetupRoutes())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() { _ = srv.Serve(context.Background(), ln) }()

	t.Cleanup(func() {
		if err := srv.Shutdown(waitTimeout); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		ts.Close()
	})

	return srv, ts.URL, ln.Addr().String()
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

func bridgeConfig(maxClients int) *Config {
	cfg := NewConfig()
	cfg.MaxClients = maxClients
	cfg.AllowedOrigins = []string{testOriginURL}
	return cfg
}

func dialBridge(t *testing.T, srv *Server, url string) *websocket.Conn {
	t.Helper()

	want := srv.Registry().Count() + 1
	conn, err := testhelpers.ConnectWebSocket(url, testOriginURL)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	testhelpers.WaitFor(t, waitTimeout, "WebSocket registration", func() bool {
		return srv.Registry().Count() == want
	})
	return conn
}

// TestBridgeRelaysBetweenTransports verifies TCP and WebSocket clients share
// one registry and exchange raw bytes in both directions.
func TestBridgeRelaysBetweenTransports(t *testing.T) {
	srv, httpURL, tcpAddr := startBridge(t, bridgeConfig(10))

	ws := dialBridge(t, srv, wsURL(httpURL))
	tcp := connectClients(t, srv, tcpAddr, 1)[0]

	writeMessage(t, tcp, msgHello)

	_ = ws.SetReadDeadline(time.Now().Add(waitTimeout))
	msgType, payload, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("WebSocket read failed: %v", err)
	}
	if msgType != websocket.BinaryMessage || string(payload) != msgHello {
		t.Fatalf("Expected binary %q, got type %d payload %q", msgHello, msgType, payload)
	}

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("from browser")); err != nil {
		t.Fatalf("WebSocket write failed: %v", err)
	}
	testhelpers.ExpectMessage(t, tcp, "from browser", waitTimeout)
}

// TestBridgeRejectsWhenFull verifies a WebSocket client beyond capacity is
// dropped without receiving anything.
func TestBridgeRejectsWhenFull(t *testing.T) {
	srv, httpURL, _ := startBridge(t, bridgeConfig(1))
	dialBridge(t, srv, wsURL(httpURL))

	conn, err := testhelpers.ConnectWebSocket(wsURL(httpURL), testOriginURL)
	if err != nil {
		t.Fatalf("Handshake should succeed before rejection: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))
	if _, payload, err := conn.ReadMessage(); err == nil {
		t.Fatalf("Expected rejected connection to close, got %q", payload)
	}
	if got := srv.Registry().Count(); got != 1 {
		t.Errorf("Expected 1 registered client, got %d", got)
	}
}

// TestBridgeClientDisconnect verifies a closing WebSocket client leaves the
// registry.
func TestBridgeClientDisconnect(t *testing.T) {
	srv, httpURL, _ := startBridge(t, bridgeConfig(10))
	ws := dialBridge(t, srv, wsURL(httpURL))

	err := ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		t.Fatalf("Failed to send close frame: %v", err)
	}
	testhelpers.WaitFor(t, waitTimeout, "WebSocket client to leave", func() bool {
		return srv.Registry().Count() == 0
	})
}

// TestBridgeOriginCheck verifies disallowed origins cannot upgrade.
func TestBridgeOriginCheck(t *testing.T) {
	srv, httpURL, _ := startBridge(t, bridgeConfig(10))

	conn, err := testhelpers.ConnectWebSocket(wsURL(httpURL), "http://evil.example")
	if err == nil {
		conn.Close()
		t.Fatal("Expected handshake from disallowed origin to fail")
	}
	if got := srv.Registry().Count(); got != 0 {
		t.Errorf("Expected no registered clients, got %d", got)
	}
}

// TestWebSocketHandlerMethodNotAllowed verifies non-GET requests are refused.
func TestWebSocketHandlerMethodNotAllowed(t *testing.T) {
	srv := New(nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/ws", http.NoBody)
		rec := httptest.NewRecorder()
		srv.WebSocketHandler(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}

// TestHealthHandler verifies the health endpoint reports the client count.
func TestHealthHandler(t *testing.T) {
	srv, httpURL, tcpAddr := startBridge(t, bridgeConfig(4))
	connectClients(t, srv, tcpAddr, 2)

	resp, err := http.Get(httpURL + "/")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status code %d, got %d", http.StatusOK, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Expected content type text/plain, got %s", ct)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	if want := "Relay is running with 2/4 clients"; string(body) != want {
		t.Errorf("Expected body %q, got %q", want, body)
	}
}

// TestCreateServerTimeouts verifies the bridge HTTP server timeouts.
func TestCreateServerTimeouts(t *testing.T) {
	srv := CreateServer(":0", http.NewServeMux())

	if srv.ReadTimeout != 15*time.Second {
		t.Errorf("Expected ReadTimeout 15s, got %v", srv.ReadTimeout)
	}
	if srv.WriteTimeout != 15*time.Second {
		t.Errorf("Expected WriteTimeout 15s, got %v", srv.WriteTimeout)
	}
	if srv.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout 60s, got %v", srv.IdleTimeout)
	}
}

// TestStartAndShutdownServer verifies StartServer returns nil after a
// graceful shutdown.
func TestStartAndShutdownServer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	httpServer := CreateServer(ln.Addr().String(), New(nil).SetupRoutes())

	served := make(chan error, 1)
	go func() { served <- StartServer(httpServer, ln) }()

	testhelpers.WaitFor(t, waitTimeout, "bridge to answer", func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	})

	if err := ShutdownServer(httpServer, waitTimeout); err != nil {
		t.Fatalf("ShutdownServer failed: %v", err)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("StartServer returned %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("StartServer did not return")
	}
}
