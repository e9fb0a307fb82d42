// Package msgs defines the typed payload bodies carried by link
// frames, with explicit little-endian codecs matching the layout the
// peer firmware declares. Field order and widths are wire contract;
// nothing here relies on Go struct layout.
package msgs

import (
	"bytes"
	"encoding/binary"
	"errors"
)

// Encoded sizes and limits.
const (
	TimeDataSize  = 7
	NetStatusSize = 11

	// MaxTopicLen is the fixed width of the topic field in a Publish
	// body. Shorter topics are NUL padded.
	MaxTopicLen = 128

	publishFixed = MaxTopicLen + 3 // topic field, qos, body length (LE16)
)

var (
	// ErrShortPayload indicates a body shorter than its declared
	// layout.
	ErrShortPayload = errors.New("payload too short")
	// ErrTopicTooLong indicates a topic over MaxTopicLen bytes.
	ErrTopicTooLong = errors.New("topic too long")
)

// TimeData is the body of an RspTimeData frame.
type TimeData struct {
	Unix        uint32
	TZOffsetMin int16
	NTPSynced   bool
}

// AppendTo appends the encoded body.
func (m *TimeData) AppendTo(b []byte) []byte {
	var buf [TimeDataSize]byte
	binary.LittleEndian.PutUint32(buf[0:], m.Unix)
	binary.LittleEndian.PutUint16(buf[4:], uint16(m.TZOffsetMin))
	if m.NTPSynced {
		buf[6] = 1
	}
	return append(b, buf[:]...)
}

// Encode returns the encoded body.
func (m *TimeData) Encode() []byte {
	return m.AppendTo(nil)
}

// Decode parses the body.
func (m *TimeData) Decode(b []byte) error {
	if len(b) < TimeDataSize {
		return ErrShortPayload
	}
	m.Unix = binary.LittleEndian.Uint32(b)
	m.TZOffsetMin = int16(binary.LittleEndian.Uint16(b[4:]))
	m.NTPSynced = b[6] != 0
	return nil
}

// NetStatus is the body of an RspNetStatus frame.
type NetStatus struct {
	WifiConnected bool
	MQTTConnected bool
	RSSI          int8
	IP            [4]byte
	UptimeSec     uint32
}

// AppendTo appends the encoded body.
func (m *NetStatus) AppendTo(b []byte) []byte {
	var buf [NetStatusSize]byte
	if m.WifiConnected {
		buf[0] = 1
	}
	if m.MQTTConnected {
		buf[1] = 1
	}
	buf[2] = byte(m.RSSI)
	copy(buf[3:7], m.IP[:])
	binary.LittleEndian.PutUint32(buf[7:], m.UptimeSec)
	return append(b, buf[:]...)
}

// Encode returns the encoded body.
func (m *NetStatus) Encode() []byte {
	return m.AppendTo(nil)
}

// Decode parses the body.
func (m *NetStatus) Decode(b []byte) error {
	if len(b) < NetStatusSize {
		return ErrShortPayload
	}
	m.WifiConnected = b[0] != 0
	m.MQTTConnected = b[1] != 0
	m.RSSI = int8(b[2])
	copy(m.IP[:], b[3:7])
	m.UptimeSec = binary.LittleEndian.Uint32(b[7:])
	return nil
}

// Publish is the body of a CmdPublish frame: a broker topic plus an
// opaque message body (the controller's OCPP JSON, untouched here).
type Publish struct {
	Topic string
	QoS   byte
	Data  []byte
}

// AppendTo appends the encoded body. The topic occupies a fixed
// MaxTopicLen field so the peer can parse without scanning.
func (m *Publish) AppendTo(b []byte) ([]byte, error) {
	if len(m.Topic) > MaxTopicLen {
		return b, ErrTopicTooLong
	}
	var topic [MaxTopicLen]byte
	copy(topic[:], m.Topic)
	b = append(b, topic[:]...)
	b = append(b, m.QoS)
	var l [2]byte
	binary.LittleEndian.PutUint16(l[:], uint16(len(m.Data)))
	b = append(b, l[:]...)
	return append(b, m.Data...), nil
}

// Encode returns the encoded body.
func (m *Publish) Encode() ([]byte, error) {
	return m.AppendTo(make([]byte, 0, publishFixed+len(m.Data)))
}

// Decode parses the body.
func (m *Publish) Decode(b []byte) error {
	if len(b) < publishFixed {
		return ErrShortPayload
	}
	topic := b[:MaxTopicLen]
	if i := bytes.IndexByte(topic, 0); i >= 0 {
		topic = topic[:i]
	}
	m.Topic = string(topic)
	m.QoS = b[MaxTopicLen]
	n := int(binary.LittleEndian.Uint16(b[MaxTopicLen+1:]))
	if len(b) < publishFixed+n {
		return ErrShortPayload
	}
	m.Data = append([]byte(nil), b[publishFixed:publishFixed+n]...)
	return nil
}

// Inbound is the body of an RspInbound frame forwarding a broker
// message to the controller: NUL-terminated topic, then the raw body.
type Inbound struct {
	Topic string
	Data  []byte
}

// Encode returns the encoded body.
func (m *Inbound) Encode() []byte {
	b := make([]byte, 0, len(m.Topic)+1+len(m.Data))
	b = append(b, m.Topic...)
	b = append(b, 0)
	return append(b, m.Data...)
}

// Decode parses the body.
func (m *Inbound) Decode(b []byte) error {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return ErrShortPayload
	}
	m.Topic = string(b[:i])
	m.Data = append([]byte(nil), b[i+1:]...)
	return nil
}
