package server

import (
	"errors"
	"io"
	"net"

	"github.com/gorilla/websocket"
)

// tcpTransport adapts a net.Conn. Reads return whatever the kernel hands back,
// so one TCP segment burst is one message.
type tcpTransport struct {
	conn net.Conn
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) Read(p []byte) (int, error) {
	return t.conn.Read(p)
}

// Write follows net.Conn semantics: a nil error means every byte was written.
func (t *tcpTransport) Write(p []byte) error {
	n, err := t.conn.Write(p)
	if err == nil && n != len(p) {
		return io.ErrShortWrite
	}
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

// wsTransport adapts a gorilla WebSocket connection to the byte-chunk model.
// A frame larger than the read buffer is delivered over several reads.
type wsTransport struct {
	conn   *websocket.Conn
	reader io.Reader
}

func newWSTransport(conn *websocket.Conn) *wsTransport {
	return &wsTransport{conn: conn}
}

func (t *wsTransport) Read(p []byte) (int, error) {
	for {
		if t.reader == nil {
			_, r, err := t.conn.NextReader()
			if err != nil {
				return 0, translateWSError(err)
			}
			t.reader = r
		}

		n, err := t.reader.Read(p)
		if errors.Is(err, io.EOF) {
			t.reader = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

// Write sends one binary frame. Callers serialise writes; gorilla allows a
// single concurrent writer.
func (t *wsTransport) Write(p []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, p)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

// translateWSError maps an orderly close handshake onto io.EOF so the worker
// treats it like a TCP peer shutdown.
func translateWSError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}
