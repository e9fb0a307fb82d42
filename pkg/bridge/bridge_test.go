package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wattalks/watt.go/pkg/bridge/mqtt"
	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
	"github.com/wattalks/watt.go/pkg/link/port"
)

type published struct {
	topic   string
	qos     byte
	payload []byte
}

type fakeBroker struct {
	pubs      []published
	connected bool
	failPub   bool
}

func (f *fakeBroker) Pub(topic string, qos byte, payload []byte) error {
	if f.failPub {
		return errors.New("broker down")
	}
	f.pubs = append(f.pubs, published{topic, qos, append([]byte(nil), payload...)})
	return nil
}

func (f *fakeBroker) Connected() bool {
	return f.connected
}

// testPeer is the charge-controller end of the pipe, with its own
// parser to read what the bridge replies.
type testPeer struct {
	t    *testing.T
	end  *port.Endpoint
	ring *link.Ring
	prs  *link.Parser
}

func newBridgeUnderTest(t *testing.T) (*Bridge, *fakeBroker, *testPeer) {
	bridgeEnd, peerEnd := port.Pipe()
	broker := &fakeBroker{connected: true}
	engine := link.NewEngine(bridgeEnd)
	b := New(engine, broker, mqtt.Topics{StationID: "s1", DeviceID: "d1"})
	b.Now = func() time.Time { return time.Unix(1700000000, 0) }

	ring := link.NewRing(link.DefaultRingSize)
	return b, broker, &testPeer{t: t, end: peerEnd, ring: ring, prs: link.NewParser(ring)}
}

func (p *testPeer) send(code byte, seq link.Seq, data []byte) {
	frame, err := (&link.Packet{Code: code, Seq: seq, Data: data}).Bytes()
	require.NoError(p.t, err)
	_, err = p.end.Write(frame)
	require.NoError(p.t, err)
}

func (p *testPeer) recv() []*link.Packet {
	buf := make([]byte, 64)
	for {
		n, err := p.end.Read(buf)
		require.NoError(p.t, err)
		if n == 0 {
			break
		}
		for _, b := range buf[:n] {
			require.True(p.t, p.ring.Push(b))
		}
	}
	var pkts []*link.Packet
	for {
		pkt, ok := p.prs.Next()
		if !ok {
			return pkts
		}
		pkts = append(pkts, pkt)
	}
}

func TestBridgePublishAcked(t *testing.T) {
	b, broker, peer := newBridgeUnderTest(t)

	body, err := (&msgs.Publish{Topic: "ocpp/s1/d1/heartbeat", QoS: 1, Data: []byte(`{}`)}).Encode()
	require.NoError(t, err)
	peer.send(link.CmdPublish, 4, body)
	b.Engine.Service(context.Background())

	require.Len(t, broker.pubs, 1)
	require.Equal(t, "ocpp/s1/d1/heartbeat", broker.pubs[0].topic)

	acks := peer.recv()
	require.Len(t, acks, 1)
	require.Equal(t, link.RspPublishAck, acks[0].Code)
	require.Equal(t, link.Seq(4), acks[0].Seq)
	require.Equal(t, []byte{link.StatusSuccess}, acks[0].Data)
}

func TestBridgePublishBrokerFailure(t *testing.T) {
	b, broker, peer := newBridgeUnderTest(t)
	broker.failPub = true

	body, err := (&msgs.Publish{Topic: "t", Data: []byte("x")}).Encode()
	require.NoError(t, err)
	peer.send(link.CmdPublish, 1, body)
	b.Engine.Service(context.Background())

	acks := peer.recv()
	require.Len(t, acks, 1)
	require.Equal(t, []byte{link.StatusError}, acks[0].Data)
}

func TestBridgePublishBadBody(t *testing.T) {
	b, broker, peer := newBridgeUnderTest(t)

	peer.send(link.CmdPublish, 2, []byte{1, 2, 3})
	b.Engine.Service(context.Background())

	require.Empty(t, broker.pubs)
	acks := peer.recv()
	require.Len(t, acks, 1)
	require.Equal(t, []byte{link.StatusInvalid}, acks[0].Data)
}

func TestBridgeTimeReply(t *testing.T) {
	b, _, peer := newBridgeUnderTest(t)
	b.TZOffsetMin = 60
	b.NTPSynced = true

	peer.send(link.CmdGetTime, 9, nil)
	b.Engine.Service(context.Background())

	replies := peer.recv()
	require.Len(t, replies, 1)
	require.Equal(t, link.RspTimeData, replies[0].Code)
	require.Equal(t, link.Seq(9), replies[0].Seq)

	var td msgs.TimeData
	require.NoError(t, td.Decode(replies[0].Data))
	require.Equal(t, uint32(1700000000), td.Unix)
	require.Equal(t, int16(60), td.TZOffsetMin)
	require.True(t, td.NTPSynced)
}

func TestBridgeNetStatusReply(t *testing.T) {
	b, _, peer := newBridgeUnderTest(t)
	b.NetStatus = func() msgs.NetStatus {
		return msgs.NetStatus{WifiConnected: true, RSSI: -55, IP: [4]byte{10, 0, 0, 2}}
	}

	peer.send(link.CmdNetStatus, 5, nil)
	b.Engine.Service(context.Background())

	replies := peer.recv()
	require.Len(t, replies, 1)
	var st msgs.NetStatus
	require.NoError(t, st.Decode(replies[0].Data))
	require.True(t, st.WifiConnected)
	require.True(t, st.MQTTConnected, "broker state overrides the injected value")
	require.Equal(t, int8(-55), st.RSSI)
}

func TestBridgeConfigUpdateCallback(t *testing.T) {
	b, _, peer := newBridgeUnderTest(t)
	var got []byte
	b.OnConfigUpdate = func(data []byte) byte {
		got = append([]byte(nil), data...)
		return link.StatusSuccess
	}

	peer.send(link.CmdConfigUpdate, 6, []byte(`{"rate":16}`))
	b.Engine.Service(context.Background())

	require.Equal(t, []byte(`{"rate":16}`), got)
	replies := peer.recv()
	require.Len(t, replies, 1)
	require.Equal(t, link.RspConfigAck, replies[0].Code)
	require.Equal(t, []byte{link.StatusSuccess}, replies[0].Data)
}

func TestBridgeUnknownCommandAckedInvalid(t *testing.T) {
	b, _, peer := newBridgeUnderTest(t)

	peer.send(0x7f, 3, nil)
	b.Engine.Service(context.Background())

	replies := peer.recv()
	require.Len(t, replies, 1)
	require.Equal(t, link.RspPublishAck, replies[0].Code)
	require.Equal(t, []byte{link.StatusInvalid}, replies[0].Data)
}

func TestBridgeTelemetryPublished(t *testing.T) {
	b, broker, peer := newBridgeUnderTest(t)

	peer.send(link.CmdTelemetry, 8, []byte(`{"wh":1200}`))
	b.Engine.Service(context.Background())

	require.Len(t, broker.pubs, 1)
	require.Equal(t, "ocpp/s1/d1/meter/1/meter_values", broker.pubs[0].topic)
	require.Equal(t, []byte(`{"wh":1200}`), broker.pubs[0].payload)

	acks := peer.recv()
	require.Len(t, acks, 1)
	require.Equal(t, []byte{link.StatusSuccess}, acks[0].Data)
}

type fakeControlContext struct {
	now time.Time
}

func (c *fakeControlContext) Time() time.Time                 { return c.now }
func (c *fakeControlContext) Context() context.Context        { return context.Background() }
func (c *fakeControlContext) PriorityLevel() int              { return fx.PrLvComm }
func (c *fakeControlContext) PostRunAt(int, ...fx.Controller) {}
func (c *fakeControlContext) TriggerNext()                    {}

func TestBridgeHeartbeat(t *testing.T) {
	b, broker, _ := newBridgeUnderTest(t)
	cc := &fakeControlContext{now: time.Unix(2000, 0)}

	require.NoError(t, b.Control(cc))
	require.Len(t, broker.pubs, 1)
	require.Equal(t, "ocpp/s1/d1/heartbeat", broker.pubs[0].topic)

	var beat map[string]interface{}
	require.NoError(t, json.Unmarshal(broker.pubs[0].payload, &beat))
	require.Contains(t, beat, "linkUp")
	require.Contains(t, beat, "uptime")

	// within the interval nothing is published
	cc.now = cc.now.Add(time.Second)
	require.NoError(t, b.Control(cc))
	require.Len(t, broker.pubs, 1)

	// past the interval the next beat goes out
	cc.now = cc.now.Add(DefaultHeartbeatInterval)
	require.NoError(t, b.Control(cc))
	require.Len(t, broker.pubs, 2)
}
