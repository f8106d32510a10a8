package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
)

func testConfig() Config {
	return Config{
		SpotID:           "P1-1",
		Sensor:           "gpio",
		BackendURL:       "http://192.168.1.100:8000/api/v1/spot/state",
		ThresholdCM:      20,
		Confirmations:    2,
		HeartbeatWindows: 20,
		SamplesPerWindow: 3,
		SampleDelayMs:    80,
		WindowPeriodMs:   3000,
		Broker:           "tcp://localhost:1883",
		HTTPAddr:         ":80",
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tr := NewTracker(start, testConfig())

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.SpotID != "P1-1" {
		t.Errorf("Config.SpotID: got %q, want P1-1", snap.Config.SpotID)
	}
	if snap.State != logic.StateUnknown {
		t.Errorf("State: got %q, want unknown", snap.State)
	}
	if snap.HasReading {
		t.Error("expected HasReading=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	dec := logic.Decision{Average: 12.5, State: logic.StateOccupied, Report: true}
	ws := logic.WindowState{Counters: logic.Counters{Occupied: 3}, LoopsSincePost: 0}
	tr.Update(dec, ws, 7)

	snap := tr.Snapshot()
	if snap.State != logic.StateOccupied {
		t.Errorf("State: got %q, want occupied", snap.State)
	}
	if snap.AverageCM != 12.5 {
		t.Errorf("AverageCM: got %v, want 12.5", snap.AverageCM)
	}
	if !snap.HasReading {
		t.Error("expected HasReading=true")
	}
	if snap.Counters.Occupied != 3 || snap.Counters.Free != 0 {
		t.Errorf("Counters: got %+v", snap.Counters)
	}
	if snap.Windows != 7 {
		t.Errorf("Windows: got %d, want 7", snap.Windows)
	}
}

func TestRecordReport(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	ts := time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC)

	tr.RecordReport(OutcomeSent, ts)
	tr.RecordReport(OutcomeFailed, ts.Add(time.Minute))
	tr.RecordReport(OutcomeSkipped, ts.Add(2*time.Minute))
	tr.RecordReport(OutcomeSkipped, ts.Add(3*time.Minute))

	snap := tr.Snapshot()
	want := ReportCounts{Sent: 1, Failed: 1, Skipped: 2}
	if snap.Reports != want {
		t.Errorf("Reports: got %+v, want %+v", snap.Reports, want)
	}
	if !snap.LastReport.Equal(ts) {
		t.Errorf("LastReport: got %v, want %v (only sent reports count)", snap.LastReport, ts)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{StartTime: start, Now: start.Add(15 * time.Minute)}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	tr.Update(logic.Decision{State: logic.StateFree, Average: 80}, logic.WindowState{}, 1)

	snap1 := tr.Snapshot()

	tr.Update(logic.Decision{State: logic.StateOccupied, Average: 10}, logic.WindowState{}, 2)

	if snap1.State != logic.StateFree {
		t.Error("snapshot should be a copy; State was modified")
	}
	if snap1.AverageCM != 80 {
		t.Error("snapshot should be a copy; AverageCM was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:          logic.StateOccupied,
		AverageCM:      11.26,
		HasReading:     true,
		Counters:       logic.Counters{Occupied: 4},
		LoopsSincePost: 0,
		Windows:        300,
		LastReport:     start.Add(14 * time.Minute),
		Reports:        ReportCounts{Sent: 10, Failed: 2, Skipped: 1},
		StartTime:      start,
		Now:            start.Add(15 * time.Minute),
		MQTTConnected:  true,
		Config:         testConfig(),
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.State != "occupied" {
		t.Errorf("State: got %q, want occupied", parsed.Status.State)
	}
	if parsed.Status.SpotID != "P1-1" {
		t.Errorf("SpotID: got %q, want P1-1", parsed.Status.SpotID)
	}
	if parsed.Status.DistanceCM == nil || float64(*parsed.Status.DistanceCM) != 11.3 {
		t.Errorf("DistanceCM: got %v, want 11.3", parsed.Status.DistanceCM)
	}
	if !parsed.Status.Ready {
		t.Error("expected Ready=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.Counters.Occupied != 4 {
		t.Errorf("Counters.Occupied: got %d, want 4", parsed.Status.Counters.Occupied)
	}
	if parsed.Status.Reports.Sent != 10 || parsed.Status.Reports.Failed != 2 || parsed.Status.Reports.Skipped != 1 {
		t.Errorf("Reports: got %+v", parsed.Status.Reports)
	}
	if parsed.Status.Reports.LastSent != "2026-01-01T00:14:00Z" {
		t.Errorf("Reports.LastSent: got %q", parsed.Status.Reports.LastSent)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Config.ThresholdCM != 20 {
		t.Errorf("Config.ThresholdCM: got %v, want 20", parsed.Status.Config.ThresholdCM)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeFirstWindow(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if status["state"] != "unknown" {
		t.Errorf("state: got %v, want unknown", status["state"])
	}
	if _, exists := status["distance_cm"]; exists {
		t.Error("distance_cm should be omitted before the first window")
	}
	reports := status["reports"].(map[string]interface{})
	if _, exists := reports["last_sent"]; exists {
		t.Error("last_sent should be omitted before the first report")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		State:      logic.StateFree,
		HasReading: true,
		AverageCM:  150,
		StartTime:  start,
		Now:        start.Add(30 * time.Minute),
		Config:     testConfig(),
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.State != "free" {
		t.Errorf("State: got %q, want free", parsed.Status.State)
	}
	if parsed.Status.UptimeSeconds != 1800 {
		t.Errorf("UptimeSeconds: got %d, want 1800", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(logic.Decision{State: logic.StateFree, Average: float64(i)}, logic.WindowState{}, i)
			tr.RecordReport(OutcomeSent, time.Now())
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
