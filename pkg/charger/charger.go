// Package charger implements the charge-controller side of the link:
// controllers that keep the clock synced against the bridge and push
// meter telemetry, driven by the cooperative loop.
package charger

import (
	"time"

	"github.com/golang/glog"

	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
)

// Default cadences.
const (
	DefaultTimeSyncInterval  = 15 * time.Minute
	DefaultTelemetryInterval = 30 * time.Second
)

// LinkService mounts an engine's service cycle into a loop at comm
// priority.
type LinkService struct {
	Engine *link.Engine
}

// AddToLoop implements framework.LoopAdder.
func (s LinkService) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvComm, s)
}

// Control implements framework.Controller.
func (s LinkService) Control(cc fx.ControlContext) error {
	s.Engine.Service(cc.Context())
	return nil
}

// TimeSync periodically requests wall time from the bridge and hands
// the reply to Apply. A request in flight is polled without blocking
// the cycle; its failure is logged and retried at the next interval.
type TimeSync struct {
	Engine   *link.Engine
	Interval time.Duration
	Apply    func(msgs.TimeData)

	next time.Time
	cmd  *link.Command
}

// AddToLoop implements framework.LoopAdder.
func (c *TimeSync) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, c)
}

// Control implements framework.Controller.
func (c *TimeSync) Control(cc fx.ControlContext) error {
	if c.cmd != nil {
		select {
		case res := <-c.cmd.ResultChan():
			c.cmd = nil
			c.applyResult(res)
		default:
		}
		return nil
	}
	now := cc.Time()
	if now.Before(c.next) {
		return nil
	}
	c.next = now.Add(c.interval())
	c.cmd = c.Engine.Do(link.CmdGetTime, nil)
	return nil
}

func (c *TimeSync) applyResult(res link.Result) {
	if res.Err != nil {
		glog.Warningf("charger: time sync: %v", res.Err)
		return
	}
	var td msgs.TimeData
	if err := td.Decode(res.Data); err != nil {
		glog.Errorf("charger: time reply: %v", err)
		return
	}
	if !td.NTPSynced {
		glog.V(1).Info("charger: bridge clock not NTP synced, reply ignored")
		return
	}
	if c.Apply != nil {
		c.Apply(td)
	}
}

func (c *TimeSync) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return DefaultTimeSyncInterval
}

// Telemetry pushes meter samples to the bridge at a fixed cadence.
// Collect produces the opaque sample body; the bridge relays it to the
// broker without interpreting it.
type Telemetry struct {
	Engine   *link.Engine
	Interval time.Duration
	Collect  func() []byte

	next time.Time
	cmd  *link.Command
}

// AddToLoop implements framework.LoopAdder.
func (c *Telemetry) AddToLoop(l *fx.Loop) {
	l.AddController(fx.PrLvControl, c)
}

// Control implements framework.Controller.
func (c *Telemetry) Control(cc fx.ControlContext) error {
	if c.cmd != nil {
		select {
		case res := <-c.cmd.ResultChan():
			c.cmd = nil
			if res.Err != nil {
				glog.Warningf("charger: telemetry push: %v", res.Err)
			}
		default:
		}
		return nil
	}
	now := cc.Time()
	if c.Collect == nil || now.Before(c.next) {
		return nil
	}
	c.next = now.Add(c.interval())
	sample := c.Collect()
	if len(sample) > link.MaxPayload {
		glog.Errorf("charger: telemetry sample too large (%d bytes), dropped", len(sample))
		return nil
	}
	c.cmd = c.Engine.Do(link.CmdTelemetry, sample)
	return nil
}

func (c *Telemetry) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return DefaultTelemetryInterval
}
