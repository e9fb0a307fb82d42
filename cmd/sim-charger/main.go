package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"math/rand"
	"time"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/wattalks/watt.go/pkg/charger"
	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/msgs"
	"github.com/wattalks/watt.go/pkg/link/port"
)

var (
	devicePath = ""
	wsURL      = ""
)

func init() {
	flag.StringVar(&devicePath, "device", devicePath, "Serial device to the bridge.")
	flag.StringVar(&wsURL, "ws", wsURL, "Connect over a websocket instead of a serial device.")
}

func openPort() (io.ReadWriter, error) {
	if wsURL != "" {
		conn, err := websocket.Dial(wsURL, "", "http://localhost/")
		if err != nil {
			return nil, err
		}
		return port.NewWebSocket(conn), nil
	}
	return port.OpenFile(devicePath)
}

// meterSample fakes a charging session's meter reading.
func meterSample() []byte {
	sample := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"energy_wh": 1200 + rand.Intn(50),
		"power_w":   7000 + rand.Intn(400),
		"voltage_v": 228 + rand.Intn(6),
	}
	data, _ := json.Marshal(sample)
	return data
}

func main() {
	flag.Parse()

	if devicePath == "" && wsURL == "" {
		log.Fatalln("one of -device or -ws is required")
	}

	p, err := openPort()
	if err != nil {
		glog.Exit(err)
	}

	engine := link.NewEngine(p)
	engine.Handler = link.HandlePacketFunc(func(_ context.Context, pkt *link.Packet) {
		if pkt.Code != link.RspInbound {
			return
		}
		var in msgs.Inbound
		if err := in.Decode(pkt.Data); err != nil {
			glog.Warningf("inbound: bad payload: %v", err)
			return
		}
		glog.Infof("inbound %s: %s", in.Topic, string(in.Data))
	})

	loop := fx.NewLoop().Add(
		charger.LinkService{Engine: engine},
		&charger.TimeSync{
			Engine: engine,
			Apply: func(td msgs.TimeData) {
				at := time.Unix(int64(td.Unix), 0).UTC()
				glog.Infof("time: %s (tz %+d min)", at.Format(time.RFC3339), td.TZOffsetMin)
			},
		},
		&charger.Telemetry{
			Engine:  engine,
			Collect: meterSample,
		},
	)
	loop.Interval = 20 * time.Millisecond

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
