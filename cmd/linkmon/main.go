package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"encoding/hex"
	"flag"
	"log"
	"time"

	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
	"github.com/wattalks/watt.go/pkg/link/port"
)

var (
	devicePath  = "/dev/ttyUSB0"
	statusEvery = 5 * time.Second
)

func init() {
	flag.StringVar(&devicePath, "device", devicePath, "Serial device of the controller link.")
	flag.DurationVar(&statusEvery, "status", statusEvery, "Interval between link status dumps.")
}

func dump(pkt *link.Packet) {
	switch pkt.Code {
	case link.CmdPublish:
		var pub msgs.Publish
		if err := pub.Decode(pkt.Data); err != nil {
			log.Printf("seq=%d publish: bad payload: %v", pkt.Seq, err)
			return
		}
		log.Printf("seq=%d publish %s (qos=%d, %d bytes)", pkt.Seq, pub.Topic, pub.QoS, len(pub.Data))
	case link.CmdTelemetry:
		log.Printf("seq=%d telemetry %s", pkt.Seq, string(pkt.Data))
	case link.RspInbound:
		var in msgs.Inbound
		if err := in.Decode(pkt.Data); err != nil {
			log.Printf("seq=%d inbound: bad payload: %v", pkt.Seq, err)
			return
		}
		log.Printf("seq=%d inbound %s: %s", pkt.Seq, in.Topic, string(in.Data))
	default:
		log.Printf("seq=%d code=%02x payload=%s", pkt.Seq, pkt.Code, hex.EncodeToString(pkt.Data))
	}
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

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	nextStatus := time.Now().Add(statusEvery)
	for range ticker.C {
		for _, pkt := range engine.Service(context.Background()) {
			dump(pkt)
		}
		if now := time.Now(); !now.Before(nextStatus) {
			s := engine.Status()
			log.Printf("link up=%v rx=%d tx=%d err=%d cksum=%d timeout=%d buf=%d/%d ovf=%d",
				s.Connected, s.RxFrames, s.TxFrames, s.Errors, s.ChecksumErrors,
				s.Timeouts, s.BufferUsed, s.BufferPeak, s.Overflows)
			nextStatus = now.Add(statusEvery)
		}
	}
}
