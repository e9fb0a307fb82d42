package charger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
	"github.com/wattalks/watt.go/pkg/link/port"
)

type fakeControlContext struct {
	now time.Time
}

func (c *fakeControlContext) Time() time.Time                 { return c.now }
func (c *fakeControlContext) Context() context.Context        { return context.Background() }
func (c *fakeControlContext) PriorityLevel() int              { return fx.PrLvControl }
func (c *fakeControlContext) PostRunAt(int, ...fx.Controller) {}
func (c *fakeControlContext) TriggerNext()                    {}

// peer reads frames off the far end of the pipe and can answer them.
type peer struct {
	t    *testing.T
	end  *port.Endpoint
	ring *link.Ring
	prs  *link.Parser
}

func newPeer(t *testing.T, end *port.Endpoint) *peer {
	ring := link.NewRing(link.DefaultRingSize)
	return &peer{t: t, end: end, ring: ring, prs: link.NewParser(ring)}
}

func (p *peer) recv() []*link.Packet {
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

func (p *peer) reply(code byte, seq link.Seq, data []byte) {
	frame, err := (&link.Packet{Code: code, Seq: seq, Data: data}).Bytes()
	require.NoError(p.t, err)
	_, err = p.end.Write(frame)
	require.NoError(p.t, err)
}

func TestTimeSyncRequestsAndApplies(t *testing.T) {
	near, far := port.Pipe()
	engine := link.NewEngine(near)
	p := newPeer(t, far)

	var applied *msgs.TimeData
	sync := &TimeSync{Engine: engine, Apply: func(td msgs.TimeData) { applied = &td }}
	cc := &fakeControlContext{now: time.Unix(5000, 0)}

	require.NoError(t, sync.Control(cc))
	reqs := p.recv()
	require.Len(t, reqs, 1)
	require.Equal(t, link.CmdGetTime, reqs[0].Code)

	td := msgs.TimeData{Unix: 1700000000, TZOffsetMin: -300, NTPSynced: true}
	p.reply(link.RspTimeData, reqs[0].Seq, td.Encode())
	engine.Service(context.Background())

	require.NoError(t, sync.Control(cc))
	require.NotNil(t, applied)
	require.Equal(t, td, *applied)

	// no new request before the interval elapses
	require.NoError(t, sync.Control(cc))
	require.Empty(t, p.recv())
}

func TestTimeSyncIgnoresUnsyncedClock(t *testing.T) {
	near, far := port.Pipe()
	engine := link.NewEngine(near)
	p := newPeer(t, far)

	var applied bool
	sync := &TimeSync{Engine: engine, Apply: func(msgs.TimeData) { applied = true }}
	cc := &fakeControlContext{now: time.Unix(5000, 0)}

	sync.Control(cc)
	reqs := p.recv()
	require.Len(t, reqs, 1)

	td := msgs.TimeData{Unix: 12345, NTPSynced: false}
	p.reply(link.RspTimeData, reqs[0].Seq, td.Encode())
	engine.Service(context.Background())
	sync.Control(cc)

	require.False(t, applied)
}

func TestTelemetryPushCadence(t *testing.T) {
	near, far := port.Pipe()
	engine := link.NewEngine(near)
	p := newPeer(t, far)

	samples := 0
	tel := &Telemetry{Engine: engine, Collect: func() []byte {
		samples++
		return []byte(`{"wh":1}`)
	}}
	cc := &fakeControlContext{now: time.Unix(6000, 0)}

	require.NoError(t, tel.Control(cc))
	require.Equal(t, 1, samples)
	pushes := p.recv()
	require.Len(t, pushes, 1)
	require.Equal(t, link.CmdTelemetry, pushes[0].Code)

	// in-flight push is polled, not re-sent
	require.NoError(t, tel.Control(cc))
	require.Equal(t, 1, samples)

	p.reply(link.RspPublishAck, pushes[0].Seq, []byte{link.StatusSuccess})
	engine.Service(context.Background())
	require.NoError(t, tel.Control(cc))

	// next sample only after the interval
	cc.now = cc.now.Add(DefaultTelemetryInterval)
	require.NoError(t, tel.Control(cc))
	require.Equal(t, 2, samples)
}

func TestLinkServiceRunsEngine(t *testing.T) {
	near, far := port.Pipe()
	engine := link.NewEngine(near)
	var handled int
	engine.Handler = link.HandlePacketFunc(func(context.Context, *link.Packet) { handled++ })

	p := newPeer(t, far)
	p.reply(link.CmdTelemetry, 1, nil)

	svc := LinkService{Engine: engine}
	require.NoError(t, svc.Control(&fakeControlContext{now: time.Now()}))
	require.Equal(t, 1, handled)
}
