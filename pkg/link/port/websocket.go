package port

import (
	"sync"

	"golang.org/x/net/websocket"
)

// WebSocket adapts a websocket connection into a non-blocking byte
// port. Each inbound message is queued as raw bytes; a background
// goroutine pumps the connection so Read never blocks. Used to run a
// link peer without serial hardware.
type WebSocket struct {
	conn *websocket.Conn

	lock sync.Mutex
	buf  []byte
	err  error
}

// NewWebSocket wraps conn and starts the receive pump.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	w := &WebSocket{conn: conn}
	go w.pump()
	return w
}

func (w *WebSocket) pump() {
	for {
		var msg []byte
		if err := websocket.Message.Receive(w.conn, &msg); err != nil {
			w.lock.Lock()
			w.err = err
			w.lock.Unlock()
			return
		}
		w.lock.Lock()
		w.buf = append(w.buf, msg...)
		w.lock.Unlock()
	}
}

// Read drains queued bytes, returning (0, nil) when none are pending.
// The pump's error surfaces only once the queue is empty.
func (w *WebSocket) Read(p []byte) (int, error) {
	w.lock.Lock()
	defer w.lock.Unlock()
	if len(w.buf) == 0 {
		return 0, w.err
	}
	n := copy(p, w.buf)
	w.buf = w.buf[n:]
	return n, nil
}

// Write sends b as one websocket message.
func (w *WebSocket) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(w.conn, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close closes the underlying connection.
func (w *WebSocket) Close() error {
	return w.conn.Close()
}
