package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/wattalks/watt.go/pkg/bridge"
	"github.com/wattalks/watt.go/pkg/bridge/mqtt"
	fx "github.com/wattalks/watt.go/pkg/framework"
	"github.com/wattalks/watt.go/pkg/link"
	"github.com/wattalks/watt.go/pkg/link/port"
)

var (
	devicePath = "/dev/ttyUSB0"
	mqttURL    = "mqtt://localhost:1883/"
	stationID  = "station-1"
	deviceID   = ""
)

func init() {
	if val := os.Getenv("WATT_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&devicePath, "device", devicePath, "Serial device of the controller link.")
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&stationID, "station", stationID, "Charge station ID.")
	flag.StringVar(&deviceID, "id", deviceID, "Device ID, defaults to the machine ID.")
}

func main() {
	flag.Parse()

	if deviceID == "" {
		id, err := machineid.ID()
		if err != nil {
			glog.Exitf("machine id: %v", err)
		}
		deviceID = id
	}

	p, err := port.OpenFile(devicePath)
	if err != nil {
		glog.Exitf("open %s: %v", devicePath, err)
	}
	defer p.Close()

	queue, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		glog.Exit(err)
	}
	if err := queue.Connect(); err != nil {
		glog.Exitf("mqtt connect: %v", err)
	}
	defer queue.Close()

	engine := link.NewEngine(p)
	b := bridge.New(engine, queue, mqtt.Topics{StationID: stationID, DeviceID: deviceID})
	if err := b.Subscribe(queue); err != nil {
		glog.Exitf("subscribe: %v", err)
	}

	loop := fx.NewLoop().Add(b)
	loop.Interval = 50 * time.Millisecond

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", loop))
	if err := runner.Wait(); err != nil {
		glog.Exit(err)
	}
}
