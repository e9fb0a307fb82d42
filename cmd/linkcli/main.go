package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/port"
)

var (
	devicePath = "/dev/ttyUSB0"
	waitReply  = 5 * time.Second
)

func init() {
	flag.StringVar(&devicePath, "device", devicePath, "Serial device of the controller link.")
	flag.DurationVar(&waitReply, "wait", waitReply, "How long to wait for a command reply.")
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func parsePayload(args []string) ([]byte, error) {
	if len(args) == 0 {
		return nil, nil
	}
	var data []byte
	for _, arg := range args {
		b, err := hex.DecodeString(arg)
		if err != nil {
			return nil, fmt.Errorf("bad hex %q: %v", arg, err)
		}
		data = append(data, b...)
	}
	return data, nil
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	p, err := port.OpenFile(devicePath)
	if err != nil {
		log.Fatalln(err)
	}
	defer p.Close()

	engine := link.NewEngine(p)
	engine.Handler = link.HandlePacketFunc(func(_ context.Context, pkt *link.Packet) {
		if pkt.Code == link.RspInbound {
			log.Printf("<< seq=%d inbound %s", pkt.Seq, hex.EncodeToString(pkt.Data))
		}
	})

	// The engine only retries and correlates while being serviced, so
	// keep it running behind the shell.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				engine.Service(ctx)
			}
		}
	}()

	shell := ishell.New()
	shell.SetPrompt(devicePath + " > ")

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send <code> [hex payload...], wait for the reply",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: send <code> [hex payload...]"))
				return
			}
			code, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := parsePayload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			cmd := engine.Do(code, data)
			select {
			case res := <-cmd.ResultChan():
				if res.Err != nil {
					c.Err(res.Err)
					return
				}
				c.Printf("seq=%d code=%02x payload=%s\n",
					cmd.Seq(), res.Code, hex.EncodeToString(res.Data))
			case <-time.After(waitReply):
				c.Err(fmt.Errorf("no reply within %s", waitReply))
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "raw",
		Help: "raw <code> [hex payload...], fire and forget",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("usage: raw <code> [hex payload...]"))
				return
			}
			code, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			data, err := parsePayload(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			seq, err := engine.Send(code, data)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("sent seq=%d\n", seq)
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "ack",
		Help: "ack <seq> <status>",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 2 {
				c.Err(fmt.Errorf("usage: ack <seq> <status>"))
				return
			}
			seq, err := parseByte(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			status, err := parseByte(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			if err := engine.SendAck(link.Seq(seq), status); err != nil {
				c.Err(err)
				return
			}
		},
	})
	shell.AddCmd(&ishell.Cmd{
		Name: "status",
		Help: "print link counters",
		Func: func(c *ishell.Context) {
			s := engine.Status()
			c.Printf("up=%v rx=%d tx=%d err=%d cksum=%d timeout=%d buf=%d/%d ovf=%d\n",
				s.Connected, s.RxFrames, s.TxFrames, s.Errors, s.ChecksumErrors,
				s.Timeouts, s.BufferUsed, s.BufferPeak, s.Overflows)
		},
	})

	shell.Run()
}
