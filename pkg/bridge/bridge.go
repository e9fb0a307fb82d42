// Package bridge implements the network-bridge side of the link: it
// dispatches frames from the charge controller to the MQTT broker and
// forwards backend commands back over the wire.
package bridge

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/wattalks/watt.go/pkg/bridge/mqtt"
	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
)

// Broker is the slice of the MQTT queue the bridge needs.
type Broker interface {
	Pub(topic string, qos byte, payload []byte) error
	Connected() bool
}

// DefaultHeartbeatInterval is how often link health is published.
const DefaultHeartbeatInterval = 30 * time.Second

// meterConnector is the connector id telemetry is attributed to. The
// controller hardware drives a single connector.
const meterConnector = 1

// Bridge wires a link engine to the broker. It implements link.Handler
// for inbound frames and framework.Controller for the periodic
// heartbeat. Payload bodies other than the declared structs stay
// opaque; OCPP semantics live in the backend and the controller.
type Bridge struct {
	Engine *link.Engine
	Broker Broker
	Topics mqtt.Topics

	// Now supplies the wall clock returned to the controller.
	Now func() time.Time
	// TZOffsetMin and NTPSynced qualify time replies.
	TZOffsetMin int16
	NTPSynced   bool

	// NetStatus supplies the network side of a status reply. Left nil,
	// only the broker session state is reported.
	NetStatus func() msgs.NetStatus

	// OnConfigUpdate and OnOTARequest let the host act on those
	// commands; the returned status byte is sent back. Left nil, the
	// command is acknowledged as invalid.
	OnConfigUpdate func([]byte) byte
	OnOTARequest   func([]byte) byte

	HeartbeatInterval time.Duration

	started  time.Time
	lastBeat time.Time
}

// New creates a bridge over engine and broker.
func New(engine *link.Engine, broker Broker, topics mqtt.Topics) *Bridge {
	b := &Bridge{
		Engine:            engine,
		Broker:            broker,
		Topics:            topics,
		Now:               time.Now,
		HeartbeatInterval: DefaultHeartbeatInterval,
	}
	engine.Handler = b
	return b
}

// Subscribe starts forwarding backend commands to the controller.
// Forwarded frames carry sequence 0: they are unsolicited, so there is
// no request to correlate with.
func (b *Bridge) Subscribe(q *mqtt.Queue) error {
	return q.Sub(b.Topics.Command(), func(topic string, payload []byte) {
		body := (&msgs.Inbound{Topic: topic, Data: payload}).Encode()
		if len(body) > link.MaxPayload {
			glog.Errorf("bridge: inbound %s too large (%d bytes), dropped", topic, len(body))
			return
		}
		if err := b.Engine.SendResponse(link.RspInbound, 0, body); err != nil {
			glog.Errorf("bridge: forward %s: %v", topic, err)
		}
	})
}

// AddToLoop mounts the engine service cycle and the heartbeat at comm
// priority.
func (b *Bridge) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvComm, fx.ControlFunc(func(cc fx.ControlContext) error {
		b.Engine.Service(cc.Context())
		return nil
	}), b)
}

// HandlePacket implements link.Handler.
func (b *Bridge) HandlePacket(_ context.Context, pkt *link.Packet) {
	switch pkt.Code {
	case link.CmdPublish:
		b.handlePublish(pkt)
	case link.CmdGetTime:
		b.handleGetTime(pkt)
	case link.CmdNetStatus:
		b.handleNetStatus(pkt)
	case link.CmdConfigUpdate:
		b.handleCallback(pkt, b.OnConfigUpdate, link.RspConfigAck)
	case link.CmdOTARequest:
		b.handleCallback(pkt, b.OnOTARequest, link.RspOTAStatus)
	case link.CmdTelemetry:
		b.handleTelemetry(pkt)
	default:
		if link.IsResponse(pkt.Code) {
			return
		}
		glog.Warningf("bridge: unknown command %#02x", pkt.Code)
		b.sendAck(pkt.Seq, link.StatusInvalid)
	}
}

func (b *Bridge) handlePublish(pkt *link.Packet) {
	var pub msgs.Publish
	if err := pub.Decode(pkt.Data); err != nil {
		glog.Errorf("bridge: bad publish body: %v", err)
		b.sendAck(pkt.Seq, link.StatusInvalid)
		return
	}
	if err := b.Broker.Pub(pub.Topic, pub.QoS, pub.Data); err != nil {
		glog.Errorf("bridge: publish %s: %v", pub.Topic, err)
		b.sendAck(pkt.Seq, link.StatusError)
		return
	}
	glog.V(2).Infof("bridge: published %s (%d bytes)", pub.Topic, len(pub.Data))
	b.sendAck(pkt.Seq, link.StatusSuccess)
}

func (b *Bridge) handleGetTime(pkt *link.Packet) {
	now := b.Now()
	td := msgs.TimeData{
		Unix:        uint32(now.Unix()),
		TZOffsetMin: b.TZOffsetMin,
		NTPSynced:   b.NTPSynced,
	}
	if err := b.Engine.SendResponse(link.RspTimeData, pkt.Seq, td.Encode()); err != nil {
		glog.Errorf("bridge: time reply: %v", err)
	}
}

func (b *Bridge) handleNetStatus(pkt *link.Packet) {
	var st msgs.NetStatus
	if b.NetStatus != nil {
		st = b.NetStatus()
	}
	st.MQTTConnected = b.Broker.Connected()
	if !b.started.IsZero() {
		st.UptimeSec = uint32(b.Now().Sub(b.started) / time.Second)
	}
	if err := b.Engine.SendResponse(link.RspNetStatus, pkt.Seq, st.Encode()); err != nil {
		glog.Errorf("bridge: status reply: %v", err)
	}
}

func (b *Bridge) handleCallback(pkt *link.Packet, fn func([]byte) byte, rsp byte) {
	status := link.StatusInvalid
	if fn != nil {
		status = fn(pkt.Data)
	}
	if err := b.Engine.SendResponse(rsp, pkt.Seq, []byte{status}); err != nil {
		glog.Errorf("bridge: reply %#02x: %v", rsp, err)
	}
}

func (b *Bridge) handleTelemetry(pkt *link.Packet) {
	if err := b.Broker.Pub(b.Topics.Meter(meterConnector), 1, pkt.Data); err != nil {
		glog.Errorf("bridge: telemetry publish: %v", err)
		b.sendAck(pkt.Seq, link.StatusError)
		return
	}
	b.sendAck(pkt.Seq, link.StatusSuccess)
}

func (b *Bridge) sendAck(seq link.Seq, status byte) {
	if err := b.Engine.SendAck(seq, status); err != nil {
		glog.Errorf("bridge: ack seq=%d: %v", seq, err)
	}
}

// Control implements framework.Controller: the periodic heartbeat
// publishing link health so operators can observe the wire without
// touching the device.
func (b *Bridge) Control(cc fx.ControlContext) error {
	now := cc.Time()
	if b.started.IsZero() {
		b.started = now
	}
	if !b.lastBeat.IsZero() && now.Sub(b.lastBeat) < b.HeartbeatInterval {
		return nil
	}
	b.lastBeat = now

	if !b.Broker.Connected() {
		glog.V(1).Info("bridge: broker offline, heartbeat skipped")
		return nil
	}
	st := b.Engine.Status()
	payload, err := json.Marshal(map[string]interface{}{
		"msgId":       strconv.FormatInt(now.UnixNano(), 10),
		"uptime":      uint32(now.Sub(b.started) / time.Second),
		"linkUp":      st.Connected,
		"rxFrames":    st.RxFrames,
		"txFrames":    st.TxFrames,
		"errors":      st.Errors,
		"checksumErr": st.ChecksumErrors,
		"timeouts":    st.Timeouts,
		"bufferPeak":  st.BufferPeak,
	})
	if err != nil {
		return err
	}
	return b.Broker.Pub(b.Topics.Heartbeat(), 1, payload)
}
