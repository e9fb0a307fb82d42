package link

// ScanWindow bounds how many noise bytes one parse attempt examines
// while hunting for a start sentinel. It keeps a cycle's work bounded
// when the wire carries garbage.
const ScanWindow = 256

// Parser extracts validated frames from a ring of raw link bytes. It
// never blocks: a partial frame stays buffered untouched until more
// bytes arrive, and a corrupted frame costs exactly one discarded byte
// so the next attempt can resynchronize. Framing is length-delimited
// once a header is accepted, so sentinel values inside a payload do not
// break it.
type Parser struct {
	ring           *Ring
	frameErrors    uint32
	checksumErrors uint32
}

// NewParser creates a parser consuming ring.
func NewParser(ring *Ring) *Parser {
	return &Parser{ring: ring}
}

// Next extracts the next complete valid frame. ok is false when no
// full valid frame is buffered yet; error counters may still have
// advanced (noise discarded, checksum mismatch).
func (p *Parser) Next() (pkt *Packet, ok bool) {
	for {
		if p.ring.Available() < headerSize {
			return nil, false
		}
		if !p.seekStart() {
			return nil, false
		}
		if p.ring.Available() < headerSize {
			// Noise discarded down to a bare sentinel; wait for the
			// rest of the header.
			return nil, false
		}

		code, _ := p.ring.PeekAt(1)
		lo, _ := p.ring.PeekAt(2)
		hi, _ := p.ring.PeekAt(3)
		seq, _ := p.ring.PeekAt(4)
		length := int(lo) | int(hi)<<8
		if length > MaxPayload {
			// Corrupted length field: this was not a real frame
			// start. Drop the sentinel and rescan.
			p.frameErrors++
			p.ring.Discard(1)
			continue
		}

		total := minFrameSize + length
		if p.ring.Available() < total {
			// Header accepted but the frame is still in flight.
			// Leave everything buffered for the next cycle.
			return nil, false
		}

		data := make([]byte, length)
		for i := range data {
			data[i], _ = p.ring.PeekAt(headerSize + i)
		}
		sum, _ := p.ring.PeekAt(headerSize + length)
		end, _ := p.ring.PeekAt(headerSize + length + 1)

		if end != EndByte {
			p.frameErrors++
			p.ring.Discard(1)
			return nil, false
		}
		if Checksum(code, Seq(seq), data) != sum {
			p.checksumErrors++
			p.frameErrors++
			p.ring.Discard(1)
			return nil, false
		}

		p.ring.Discard(total)
		return &Packet{Code: code, Seq: Seq(seq), Data: data}, true
	}
}

// seekStart discards noise until a start sentinel is at the front of
// the ring, examining at most ScanWindow bytes.
func (p *Parser) seekStart() bool {
	for scanned := 0; scanned < ScanWindow; scanned++ {
		b, ok := p.ring.Peek()
		if !ok {
			return false
		}
		if b == StartByte {
			return true
		}
		p.ring.Pop()
	}
	return false
}

// FrameErrors returns the count of rejected frames and length-field
// rejections.
func (p *Parser) FrameErrors() uint32 {
	return p.frameErrors
}

// ChecksumErrors returns the count of checksum mismatches.
func (p *Parser) ChecksumErrors() uint32 {
	return p.checksumErrors
}
