package msgs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTimeDataLayout(t *testing.T) {
	m := &TimeData{Unix: 0x01020304, TZOffsetMin: -120, NTPSynced: true}
	b := m.Encode()
	require.Equal(t, TimeDataSize, len(b))
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01}, b[:4], "timestamp is little-endian")

	var got TimeData
	require.NoError(t, got.Decode(b))
	require.Equal(t, *m, got)
}

func TestTimeDataShort(t *testing.T) {
	var m TimeData
	require.Equal(t, ErrShortPayload, m.Decode(make([]byte, TimeDataSize-1)))
}

func TestNetStatusRoundTrip(t *testing.T) {
	m := &NetStatus{
		WifiConnected: true,
		MQTTConnected: false,
		RSSI:          -67,
		IP:            [4]byte{192, 168, 4, 21},
		UptimeSec:     86400,
	}
	b := m.Encode()
	require.Equal(t, NetStatusSize, len(b))

	var got NetStatus
	require.NoError(t, got.Decode(b))
	require.Equal(t, *m, got)
}

func TestPublishRoundTrip(t *testing.T) {
	m := &Publish{Topic: "ocpp/station-1/dev-2/heartbeat", QoS: 1, Data: []byte(`{"uptime":12}`)}
	b, err := m.Encode()
	require.NoError(t, err)
	require.Equal(t, publishFixed+len(m.Data), len(b))

	var got Publish
	require.NoError(t, got.Decode(b))
	require.Equal(t, m.Topic, got.Topic)
	require.Equal(t, m.QoS, got.QoS)
	require.Equal(t, m.Data, got.Data)
}

func TestPublishTopicTooLong(t *testing.T) {
	m := &Publish{Topic: string(make([]byte, MaxTopicLen+1))}
	prefix := []byte{1}
	b, err := m.AppendTo(prefix)
	require.Equal(t, ErrTopicTooLong, err)
	require.Equal(t, prefix, b)
}

func TestPublishTruncatedBody(t *testing.T) {
	m := &Publish{Topic: "t", Data: []byte("abcdef")}
	b, err := m.Encode()
	require.NoError(t, err)

	var got Publish
	require.Equal(t, ErrShortPayload, got.Decode(b[:len(b)-1]))
}

func TestInboundRoundTrip(t *testing.T) {
	m := &Inbound{Topic: "ocpp/s/d/cmd/remote_start", Data: []byte(`{"txId":9}`)}
	var got Inbound
	require.NoError(t, got.Decode(m.Encode()))
	require.Equal(t, m.Topic, got.Topic)
	require.Equal(t, m.Data, got.Data)
}

func TestInboundMissingSeparator(t *testing.T) {
	var m Inbound
	require.Equal(t, ErrShortPayload, m.Decode([]byte("no separator")))
}
