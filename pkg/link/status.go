package link

import "time"

// Status is a snapshot of link health. Counters are cumulative since
// engine construction; Connected derives from the last valid frame
// falling inside the engine's connection window.
type Status struct {
	Connected bool
	LastSeen  time.Time

	TxFrames       uint32
	RxFrames       uint32
	Errors         uint32
	ChecksumErrors uint32
	Timeouts       uint32

	BufferUsed int
	BufferPeak int
	Overflows  uint32
}
