package link

// Checksum computes the frame integrity byte: an 8-bit XOR over the
// fields in wire order - code, length low byte, length high byte,
// sequence, then every payload byte.
//
// XOR detects accidental corruption only. Even-parity multi-bit errors
// cancel out and reorderings go unnoticed; the peer firmware uses the
// same function, so the weakness is kept for wire compatibility.
func Checksum(code byte, seq Seq, data []byte) byte {
	n := len(data)
	sum := code ^ byte(n) ^ byte(n>>8) ^ byte(seq)
	for _, b := range data {
		sum ^= b
	}
	return sum
}
