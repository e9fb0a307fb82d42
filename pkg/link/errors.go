package link

import (
	"errors"
	"fmt"
)

var (
	// ErrPayloadTooLarge indicates a payload over MaxPayload bytes.
	// Nothing is written to the wire.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrBusy indicates a tracked command is already outstanding.
	// The engine keeps one request in flight per direction.
	ErrBusy = errors.New("request already outstanding")
	// ErrNoReply indicates the retry budget was exhausted without a
	// correlated reply. This is definitive: the host should treat the
	// peer as unresponsive.
	ErrNoReply = errors.New("no reply")
)

// ReplyError wraps a non-success status byte carried in an ack.
type ReplyError struct {
	Status byte
}

// Error implements error.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("peer status %#02x", e.Status)
}
