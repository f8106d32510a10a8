package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/report"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event          string           `json:"event,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	SpotID         string           `json:"spot_id"`
	State          string           `json:"state"`
	DistanceCM     *report.Distance `json:"distance_cm,omitempty"`
	Ready          bool             `json:"ready"`
	Counters       CountersJSON     `json:"counters"`
	LoopsSincePost int              `json:"loops_since_post"`
	Windows        int              `json:"windows"`
	Reports        ReportsJSON      `json:"reports"`
	UptimeSeconds  int64            `json:"uptime_seconds"`
	StartTime      string           `json:"start_time"`
	Timestamp      string           `json:"timestamp"`
	MQTT           MQTTStatus       `json:"mqtt"`
	Network        *NetworkJSON     `json:"network,omitempty"`
	Config         ConfigJSON       `json:"config"`
}

// CountersJSON is the JSON representation of the confirmation counters.
type CountersJSON struct {
	Occupied int `json:"occupied"`
	Free     int `json:"free"`
}

// ReportsJSON is the JSON representation of report counts.
type ReportsJSON struct {
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
	LastSent string `json:"last_sent,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Sensor           string  `json:"sensor"`
	BackendURL       string  `json:"backend_url"`
	ThresholdCM      float64 `json:"threshold_cm"`
	Confirmations    int     `json:"confirmations"`
	HeartbeatWindows int     `json:"heartbeat_windows"`
	SamplesPerWindow int     `json:"samples_per_window"`
	SampleDelayMs    int64   `json:"sample_delay_ms"`
	WindowPeriodMs   int64   `json:"window_period_ms"`
	DropNoEcho       bool    `json:"drop_no_echo"`
	Broker           string  `json:"broker,omitempty"`
	HTTPAddr         string  `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := string(snap.State)
	if state == "" {
		state = string(logic.StateUnknown)
	}

	inner := StatusInner{
		SpotID:         snap.Config.SpotID,
		State:          state,
		Ready:          snap.HasReading,
		Counters:       CountersJSON{Occupied: snap.Counters.Occupied, Free: snap.Counters.Free},
		LoopsSincePost: snap.LoopsSincePost,
		Windows:        snap.Windows,
		Reports: ReportsJSON{
			Sent:    snap.Reports.Sent,
			Failed:  snap.Reports.Failed,
			Skipped: snap.Reports.Skipped,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Sensor:           snap.Config.Sensor,
			BackendURL:       snap.Config.BackendURL,
			ThresholdCM:      snap.Config.ThresholdCM,
			Confirmations:    snap.Config.Confirmations,
			HeartbeatWindows: snap.Config.HeartbeatWindows,
			SamplesPerWindow: snap.Config.SamplesPerWindow,
			SampleDelayMs:    snap.Config.SampleDelayMs,
			WindowPeriodMs:   snap.Config.WindowPeriodMs,
			DropNoEcho:       snap.Config.DropNoEcho,
			Broker:           snap.Config.Broker,
			HTTPAddr:         snap.Config.HTTPAddr,
		},
	}
	if snap.HasReading {
		d := report.Distance(snap.AverageCM)
		inner.DistanceCM = &d
	}
	if !snap.LastReport.IsZero() {
		inner.Reports.LastSent = snap.LastReport.UTC().Format(time.RFC3339)
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
