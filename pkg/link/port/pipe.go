// Package port provides byte transports satisfying the link engine's
// non-blocking Read contract: Read returns (0, nil) when no bytes are
// pending instead of blocking the service cycle.
package port

import "sync"

// Endpoint is one side of an in-memory byte pipe.
type Endpoint struct {
	rx *byteQueue
	tx *byteQueue
}

type byteQueue struct {
	lock   sync.Mutex
	buf    []byte
	closed bool
}

// Pipe returns two connected endpoints: what one writes, the other
// reads. Used by tests and the simulator to run two engines back to
// back without hardware.
func Pipe() (*Endpoint, *Endpoint) {
	a, b := &byteQueue{}, &byteQueue{}
	return &Endpoint{rx: a, tx: b}, &Endpoint{rx: b, tx: a}
}

// Read drains buffered bytes, returning (0, nil) when the pipe is dry.
func (e *Endpoint) Read(p []byte) (int, error) {
	e.rx.lock.Lock()
	defer e.rx.lock.Unlock()
	if len(e.rx.buf) == 0 {
		if e.rx.closed {
			return 0, errClosed
		}
		return 0, nil
	}
	n := copy(p, e.rx.buf)
	e.rx.buf = e.rx.buf[n:]
	return n, nil
}

// Write buffers bytes for the peer endpoint.
func (e *Endpoint) Write(p []byte) (int, error) {
	e.tx.lock.Lock()
	defer e.tx.lock.Unlock()
	if e.tx.closed {
		return 0, errClosed
	}
	e.tx.buf = append(e.tx.buf, p...)
	return len(p), nil
}

// Close tears down both directions.
func (e *Endpoint) Close() error {
	for _, q := range []*byteQueue{e.rx, e.tx} {
		q.lock.Lock()
		q.closed = true
		q.lock.Unlock()
	}
	return nil
}
