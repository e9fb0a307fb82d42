package mqtt

import "strconv"

// Topics builds the broker topic hierarchy for one charge station
// device: ocpp/<station>/<device>/<suffix>. The layout is shared with
// the backend and must not drift.
type Topics struct {
	StationID string
	DeviceID  string
}

func (t Topics) join(suffix string) string {
	return "ocpp/" + t.StationID + "/" + t.DeviceID + "/" + suffix
}

// Heartbeat is the periodic liveness topic.
func (t Topics) Heartbeat() string {
	return t.join("heartbeat")
}

// Boot is the boot notification topic.
func (t Topics) Boot() string {
	return t.join("event/0/boot_notification")
}

// Status is the per-connector status notification topic.
func (t Topics) Status(connector int) string {
	return t.join("status/" + strconv.Itoa(connector) + "/status_notification")
}

// Meter is the per-connector meter values topic.
func (t Topics) Meter(connector int) string {
	return t.join("meter/" + strconv.Itoa(connector) + "/meter_values")
}

// Transaction is the transaction event topic for kind (start/stop).
func (t Topics) Transaction(kind string) string {
	return t.join("transaction/" + kind)
}

// Command is the subscription pattern for inbound backend commands.
func (t Topics) Command() string {
	return t.join("cmd/+")
}

// CommandPrefix is the prefix all inbound command topics share.
func (t Topics) CommandPrefix() string {
	return t.join("cmd/")
}
