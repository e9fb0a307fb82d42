package link

// Framing constants of the wire format.
const (
	// StartByte marks the beginning of a frame.
	StartByte byte = 0xaa
	// EndByte marks the end of a frame.
	EndByte byte = 0x55

	// MaxPayload is the largest payload a single frame may carry.
	MaxPayload = 512

	headerSize = 5 // start, code, length (LE16), seq
	footerSize = 2 // checksum, end

	// MaxFrameSize is the encoded size of a frame with a full payload.
	MaxFrameSize = headerSize + MaxPayload + footerSize

	minFrameSize = headerSize + footerSize
)

// Command codes originated by the charge controller. The meaning of
// their payloads is owned by the dispatcher, not by this package.
const (
	CmdPublish      byte = 0x01 // publish request (topic + body)
	CmdGetTime      byte = 0x02 // wall clock request
	CmdNetStatus    byte = 0x03 // network status request
	CmdConfigUpdate byte = 0x04 // configuration update
	CmdOTARequest   byte = 0x05 // firmware OTA request
	CmdTelemetry    byte = 0x06 // telemetry / meter values push
)

// Response codes originated by the network bridge.
const (
	RspPublishAck byte = 0x81
	RspTimeData   byte = 0x82
	RspNetStatus  byte = 0x83
	RspConfigAck  byte = 0x84
	RspInbound    byte = 0x85 // unsolicited forward of an inbound broker message
	RspOTAStatus  byte = 0x86
)

// Status bytes carried in ack payloads.
const (
	StatusSuccess byte = 0x00
	StatusError   byte = 0x01
	StatusTimeout byte = 0x02
	StatusInvalid byte = 0x03
)

// IsResponse reports whether code flows bridge-to-controller.
func IsResponse(code byte) bool {
	return code&0x80 != 0
}

// Seq is a frame sequence number. It wraps mod 256 and correlates a
// request with its reply; it carries no ordering guarantees.
type Seq byte

// Next calculates the next sequence number.
func (s Seq) Next() Seq {
	return s + 1
}

// Packet is a single frame, either parsed off the wire or about to be
// encoded onto it.
type Packet struct {
	Code byte
	Seq  Seq
	Data []byte
}

// Size returns the encoded frame size in bytes.
func (p *Packet) Size() int {
	return minFrameSize + len(p.Data)
}

// AppendTo appends the encoded frame to b. It returns
// ErrPayloadTooLarge and leaves b unchanged if the payload exceeds
// MaxPayload.
func (p *Packet) AppendTo(b []byte) ([]byte, error) {
	n := len(p.Data)
	if n > MaxPayload {
		return b, ErrPayloadTooLarge
	}
	b = append(b, StartByte, p.Code, byte(n), byte(n>>8), byte(p.Seq))
	b = append(b, p.Data...)
	return append(b, Checksum(p.Code, p.Seq, p.Data), EndByte), nil
}

// Bytes returns the encoded frame.
func (p *Packet) Bytes() ([]byte, error) {
	return p.AppendTo(make([]byte, 0, p.Size()))
}
