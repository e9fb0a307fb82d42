// Package link implements the framed UART protocol spoken between the
// charge-control MCU and the network-bridge MCU.
package link

// The link protocol turns a raw full-duplex serial byte stream into
// bounded, integrity-checked message exchange. Each frame is delimited
// by fixed sentinel bytes and length-prefixed, carries an XOR checksum
// and a one-byte sequence number used to correlate a request with its
// reply. Payload contents are opaque to this package; their meaning
// belongs to the dispatcher wired in by the host.
//
// The engine is strictly non-blocking: the host calls Service at a
// bounded rate (>=10Hz) and the engine drains the port, extracts any
// complete frames, drives reply timeouts and retries, and returns.
// Both ends of the wire run the same engine.
//
// Producer/consumer: charge-control firmware on one side, network
// bridge on the other.
