package link

import "time"

// Result is the outcome of a tracked command.
type Result struct {
	Err  error
	Code byte
	Data []byte
}

// Command tracks one sent request until a correlated reply arrives or
// the retry budget runs out. The engine's Service drives its timeouts
// and retransmissions; the host observes completion on ResultChan. A
// caller may simply stop reading the channel to abandon a command -
// the engine still bounds it by the retry budget.
type Command struct {
	code byte
	data []byte
	seq  Seq

	attempt  int
	deadline time.Time // reply deadline of the current attempt
	resendAt time.Time // earliest retransmission after backoff

	resultCh chan Result
}

// Seq returns the sequence number assigned to the request. All
// retransmissions reuse it so the reply correlates regardless of which
// attempt the peer answered.
func (c *Command) Seq() Seq {
	return c.seq
}

// ResultChan returns the channel the result is delivered on. It is
// buffered; the engine never blocks on delivery.
func (c *Command) ResultChan() <-chan Result {
	return c.resultCh
}

func (c *Command) deliver(res Result) {
	c.resultCh <- res
}

func failedCommand(err error) *Command {
	cmd := &Command{resultCh: make(chan Result, 1)}
	cmd.deliver(Result{Err: err})
	return cmd
}
