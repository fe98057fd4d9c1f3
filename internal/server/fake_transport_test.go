package server

import (
	"errors"
	"io"
	"net"
	"sync"
)

// fakeTransport is an in-memory Transport. Chunks pushed with deliver are
// returned by Read, truncated to the caller's buffer like a stream socket.
type fakeTransport struct {
	mu       sync.Mutex
	written  [][]byte
	writeErr error
	closed   bool

	reads   chan []byte
	pending []byte
	done    chan struct{}
	once    sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		reads: make(chan []byte, 16),
		done:  make(chan struct{}),
	}
}

func (f *fakeTransport) deliver(msg string) {
	f.reads <- []byte(msg)
}

// hangUp makes the next Read report an orderly peer shutdown.
func (f *fakeTransport) hangUp() {
	close(f.reads)
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		select {
		case chunk, ok := <-f.reads:
			if !ok {
				return 0, io.EOF
			}
			f.pending = chunk
		case <-f.done:
			return 0, net.ErrClosed
		}
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return net.ErrClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, msg := range f.written {
		out[i] = string(msg)
	}
	return out
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

var errBrokenPeer = errors.New("broken peer")
