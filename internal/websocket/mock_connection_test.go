package websocket

import (
	"errors"
	"sync"
	"time"
)

var errClosed = errors.New("connection closed")

// mockConnection feeds queued reads and records writes.
type mockConnection struct {
	mu      sync.Mutex
	reads   chan []byte
	closed  chan struct{}
	once    sync.Once
	written [][]byte
	types   []int
	remote  string
	limit   int64
}

func newMockConnection() *mockConnection {
	return &mockConnection{
		reads:  make(chan []byte, 16),
		closed: make(chan struct{}),
		remote: "192.0.2.10:50000",
	}
}

func (m *mockConnection) push(data string) { m.reads <- []byte(data) }

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closed:
		return errClosed
	default:
	}
	m.mu.Lock()
	m.types = append(m.types, messageType)
	m.written = append(m.written, data)
	m.mu.Unlock()
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	select {
	case data := <-m.reads:
		return 1, data, nil
	case <-m.closed:
		return 0, nil, errClosed
	}
}

func (m *mockConnection) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error   { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetPongHandler(func(string) error) {}
func (m *mockConnection) RemoteAddr() string                { return m.remote }

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	m.limit = limit
	m.mu.Unlock()
}

func (m *mockConnection) readLimit() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit
}

// messages returns the data of text frames written so far.
func (m *mockConnection) messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for i, t := range m.types {
		if t == 1 {
			out = append(out, m.written[i])
		}
	}
	return out
}
