package link

// DefaultRingSize is the receive buffer capacity used by NewRing and
// NewEngine when none is given. 512 bytes holds most of a full frame
// while staying friendly to small-RAM peers running the same sizing.
const DefaultRingSize = 512

// Ring is a fixed-capacity circular byte queue staging inbound bytes
// before framing. The storage is allocated once at construction and
// never grows. It is not safe for concurrent use; the engine serializes
// access to it.
type Ring struct {
	buf   []byte
	head  int // next write position
	tail  int // next read position
	count int

	totalIn   uint32
	totalOut  uint32
	overflows uint32
	peak      int
}

// NewRing creates a ring with the given capacity, or DefaultRingSize
// if capacity is not positive.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultRingSize
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Push appends one byte. It returns false and counts an overflow when
// the ring is full; the byte is not stored and existing data is kept.
func (r *Ring) Push(b byte) bool {
	if r.count >= len(r.buf) {
		r.overflows++
		return false
	}
	r.buf[r.head] = b
	r.head = (r.head + 1) % len(r.buf)
	r.count++
	r.totalIn++
	if r.count > r.peak {
		r.peak = r.count
	}
	return true
}

// Pop removes and returns the oldest byte.
func (r *Ring) Pop() (byte, bool) {
	if r.count == 0 {
		return 0, false
	}
	b := r.buf[r.tail]
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	r.totalOut++
	return b, true
}

// Peek returns the oldest byte without removing it.
func (r *Ring) Peek() (byte, bool) {
	return r.PeekAt(0)
}

// PeekAt returns the byte at offset from the oldest byte without
// removing anything. ok is false when offset is past the buffered data.
func (r *Ring) PeekAt(offset int) (byte, bool) {
	if offset < 0 || offset >= r.count {
		return 0, false
	}
	return r.buf[(r.tail+offset)%len(r.buf)], true
}

// Discard drops up to n of the oldest bytes and returns how many were
// dropped.
func (r *Ring) Discard(n int) int {
	if n > r.count {
		n = r.count
	}
	r.tail = (r.tail + n) % len(r.buf)
	r.count -= n
	r.totalOut += uint32(n)
	return n
}

// Available returns the number of buffered bytes.
func (r *Ring) Available() int {
	return r.count
}

// Free returns the remaining capacity.
func (r *Ring) Free() int {
	return len(r.buf) - r.count
}

// Capacity returns the fixed capacity.
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Clear drops all buffered bytes. Counters are kept.
func (r *Ring) Clear() {
	r.totalOut += uint32(r.count)
	r.head, r.tail, r.count = 0, 0, 0
}

// Overflows returns the number of rejected pushes.
func (r *Ring) Overflows() uint32 {
	return r.overflows
}

// Peak returns the high-water mark of buffered bytes.
func (r *Ring) Peak() int {
	return r.peak
}

// TotalIn returns the total bytes accepted since construction.
func (r *Ring) TotalIn() uint32 {
	return r.totalIn
}

// TotalOut returns the total bytes consumed or discarded.
func (r *Ring) TotalOut() uint32 {
	return r.totalOut
}
