package link

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Handler is called for every validated frame, requests and replies
// alike. Replies correlated to an outstanding command additionally
// complete that command.
type Handler interface {
	HandlePacket(context.Context, *Packet)
}

// HandlePacketFunc is the func form of Handler.
type HandlePacketFunc func(context.Context, *Packet)

// HandlePacket implements Handler.
func (f HandlePacketFunc) HandlePacket(ctx context.Context, pkt *Packet) {
	f(ctx, pkt)
}

// Engine defaults, shared with the peer firmware.
const (
	// DefaultReplyTimeout is the per-attempt wait for a correlated
	// reply.
	DefaultReplyTimeout = 1000 * time.Millisecond
	// DefaultMaxAttempts bounds transmissions of one command.
	DefaultMaxAttempts = 3
	// DefaultBackoff is scaled linearly by the attempt number before a
	// retransmission.
	DefaultBackoff = 100 * time.Millisecond
	// DefaultConnWindow is the rolling window a valid frame must fall
	// into for the peer to count as connected.
	DefaultConnWindow = 10 * time.Second
	// DefaultStallTimeout clears the receive buffer when buffered
	// bytes sit this long without completing a frame, recovering from
	// a peer that died mid-transmission.
	DefaultStallTimeout = 1000 * time.Millisecond

	// overflowDiscard is how much of the oldest buffered data is
	// dropped to resynchronize after an overflow. Dropping a chunk
	// bounds recovery time; dropping single bytes would thrash.
	overflowDiscard = 64
)

// Engine is one end of the link: it owns the receive ring, the parser
// and the request tracking for a single wire. Port carries the raw
// bytes; its Read must be non-blocking (return 0, nil when dry) and
// its Write must accept a whole frame without stalling the cycle.
//
// Service must be called periodically by exactly one goroutine. Send,
// Do, SendAck and SendResponse may be called from others; the engine
// serializes internally.
type Engine struct {
	Port    io.ReadWriter
	Handler Handler

	// Now is the engine's clock, overridable in tests.
	Now func() time.Time

	ReplyTimeout time.Duration
	MaxAttempts  int
	Backoff      time.Duration
	ConnWindow   time.Duration
	StallTimeout time.Duration

	ring   *Ring
	parser *Parser

	txSeq   Seq
	pending *Command

	txFrames  uint32
	rxFrames  uint32
	timeouts  uint32
	lastRx    time.Time // last raw byte arrival
	lastFrame time.Time // last valid frame

	readBuf [64]byte
	lock    sync.Mutex
}

// NewEngine creates an engine on port with default tuning and a
// DefaultRingSize receive buffer.
func NewEngine(port io.ReadWriter) *Engine {
	ring := NewRing(DefaultRingSize)
	return &Engine{
		Port:         port,
		Now:          time.Now,
		ReplyTimeout: DefaultReplyTimeout,
		MaxAttempts:  DefaultMaxAttempts,
		Backoff:      DefaultBackoff,
		ConnWindow:   DefaultConnWindow,
		StallTimeout: DefaultStallTimeout,
		ring:         ring,
		parser:       NewParser(ring),
	}
}

// Service runs one non-blocking cycle: drain the port into the ring,
// extract complete frames in arrival order, recover from stalls and
// drive the outstanding command's timeout/retry machine. It returns
// the frames of this cycle and dispatches them to Handler if set.
func (e *Engine) Service(ctx context.Context) []*Packet {
	e.lock.Lock()
	now := e.Now()
	e.drainPort(now)

	var pkts []*Packet
	for {
		pkt, ok := e.parser.Next()
		if !ok {
			break
		}
		e.rxFrames++
		e.lastFrame = now
		glog.V(3).Infof("link: rx code=%#02x len=%d seq=%d", pkt.Code, len(pkt.Data), pkt.Seq)
		pkts = append(pkts, pkt)
	}

	var done *Command
	var res Result
	if e.pending != nil {
		for _, pkt := range pkts {
			if IsResponse(pkt.Code) && pkt.Seq == e.pending.seq {
				done, e.pending = e.pending, nil
				res = Result{Code: pkt.Code, Data: pkt.Data}
				break
			}
		}
	}

	if e.ring.Available() > 0 && now.Sub(e.lastRx) > e.StallTimeout {
		dropped := e.ring.Available()
		e.ring.Clear()
		e.timeouts++
		glog.Warningf("link: stalled mid-frame, dropped %d stale bytes", dropped)
	}

	failed, ferr := e.servicePending(now)
	e.lock.Unlock()

	if done != nil {
		done.deliver(res)
	}
	if failed != nil {
		failed.deliver(Result{Err: ferr})
	}
	if h := e.Handler; h != nil {
		for _, pkt := range pkts {
			h.HandlePacket(ctx, pkt)
		}
	}
	return pkts
}

// drainPort moves pending port bytes into the ring. On overflow a
// chunk of the oldest data is dropped so the newest bytes still land;
// the loss is counted, never silent.
func (e *Engine) drainPort(now time.Time) {
	for {
		n, err := e.Port.Read(e.readBuf[:])
		if n > 0 {
			e.lastRx = now
			for _, b := range e.readBuf[:n] {
				if !e.ring.Push(b) {
					glog.Warningf("link: rx overflow, dropping %d oldest bytes", overflowDiscard)
					e.ring.Discard(overflowDiscard)
					e.ring.Push(b)
				}
			}
		}
		if err != nil {
			if err != io.EOF {
				glog.V(2).Infof("link: port read: %v", err)
			}
			return
		}
		if n == 0 {
			return
		}
	}
}

// servicePending advances the retry state machine of the outstanding
// command. It returns the command and error to deliver when the
// command just failed definitively.
func (e *Engine) servicePending(now time.Time) (*Command, error) {
	cmd := e.pending
	if cmd == nil {
		return nil, nil
	}
	if !cmd.deadline.IsZero() && now.After(cmd.deadline) {
		e.timeouts++
		if cmd.attempt >= e.MaxAttempts {
			e.pending = nil
			glog.Warningf("link: command %#02x seq=%d failed after %d attempts", cmd.code, cmd.seq, cmd.attempt)
			return cmd, ErrNoReply
		}
		cmd.deadline = time.Time{}
		cmd.resendAt = now.Add(time.Duration(cmd.attempt) * e.Backoff)
		return nil, nil
	}
	if !cmd.resendAt.IsZero() && !now.Before(cmd.resendAt) {
		cmd.resendAt = time.Time{}
		cmd.attempt++
		glog.V(2).Infof("link: retransmit code=%#02x seq=%d attempt=%d", cmd.code, cmd.seq, cmd.attempt)
		if err := e.transmit(cmd.code, cmd.seq, cmd.data); err != nil {
			e.pending = nil
			return cmd, err
		}
		cmd.deadline = now.Add(e.ReplyTimeout)
	}
	return nil, nil
}

// Send transmits a frame without reply tracking and returns the
// sequence number it was assigned.
func (e *Engine) Send(code byte, data []byte) (Seq, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	seq := e.txSeq
	if err := e.transmit(code, seq, data); err != nil {
		return 0, err
	}
	e.txSeq = e.txSeq.Next()
	return seq, nil
}

// Do sends a command and tracks it until a correlated reply arrives or
// the retry budget is exhausted. One command may be outstanding at a
// time; a second Do completes immediately with ErrBusy.
func (e *Engine) Do(code byte, data []byte) *Command {
	e.lock.Lock()
	if e.pending != nil {
		e.lock.Unlock()
		return failedCommand(ErrBusy)
	}
	cmd := &Command{code: code, data: data, resultCh: make(chan Result, 1)}
	cmd.seq = e.txSeq
	if err := e.transmit(code, cmd.seq, data); err != nil {
		e.lock.Unlock()
		cmd.deliver(Result{Err: err})
		return cmd
	}
	e.txSeq = e.txSeq.Next()
	cmd.attempt = 1
	cmd.deadline = e.Now().Add(e.ReplyTimeout)
	e.pending = cmd
	e.lock.Unlock()
	return cmd
}

// SendAck replies to the request carrying seq with a one-byte status.
func (e *Engine) SendAck(seq Seq, status byte) error {
	return e.SendResponse(RspPublishAck, seq, []byte{status})
}

// SendResponse sends a response frame reusing the request's sequence
// number so the peer can correlate it.
func (e *Engine) SendResponse(code byte, seq Seq, data []byte) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.transmit(code, seq, data)
}

func (e *Engine) transmit(code byte, seq Seq, data []byte) error {
	pkt := Packet{Code: code, Seq: seq, Data: data}
	b, err := pkt.Bytes()
	if err != nil {
		return err
	}
	if _, err := e.Port.Write(b); err != nil {
		return err
	}
	e.txFrames++
	glog.V(3).Infof("link: tx code=%#02x len=%d seq=%d", code, len(data), seq)
	return nil
}

// Connected reports whether a valid frame arrived within the
// connection window.
func (e *Engine) Connected() bool {
	return e.Status().Connected
}

// Status returns a snapshot of link health.
func (e *Engine) Status() Status {
	e.lock.Lock()
	defer e.lock.Unlock()
	return Status{
		Connected:      !e.lastFrame.IsZero() && e.Now().Sub(e.lastFrame) < e.ConnWindow,
		LastSeen:       e.lastFrame,
		TxFrames:       e.txFrames,
		RxFrames:       e.rxFrames,
		Errors:         e.parser.FrameErrors() + e.ring.Overflows(),
		ChecksumErrors: e.parser.ChecksumErrors(),
		Timeouts:       e.timeouts,
		BufferUsed:     e.ring.Available(),
		BufferPeak:     e.ring.Peak(),
		Overflows:      e.ring.Overflows(),
	}
}
