// Package status provides a thread-safe status tracker for the parking-sensor daemon.
// It is written by the run loop and read by the HTTP status page.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// NetworkInfo contains network state as reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	SpotID           string
	Sensor           string
	BackendURL       string
	ThresholdCM      float64
	Confirmations    int
	HeartbeatWindows int
	SamplesPerWindow int
	SampleDelayMs    int64
	WindowPeriodMs   int64
	DropNoEcho       bool
	Broker           string // empty = MQTT disabled
	HTTPAddr         string
}

// Outcome is the result of one report attempt.
type Outcome int

const (
	OutcomeSent Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

// ReportCounts tallies report attempts since startup.
type ReportCounts struct {
	Sent    int
	Failed  int
	Skipped int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State          logic.State
	AverageCM      float64
	HasReading     bool
	Counters       logic.Counters
	LoopsSincePost int
	Windows        int
	LastReport     time.Time
	Reports        ReportCounts
	StartTime      time.Time
	Now            time.Time
	MQTTConnected  bool
	Network        *NetworkInfo
	Config         Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			State:     logic.StateUnknown,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update records the outcome of one window.
func (t *Tracker) Update(dec logic.Decision, ws logic.WindowState, windows int) {
	t.mu.Lock()
	t.snap.State = dec.State
	t.snap.AverageCM = dec.Average
	t.snap.HasReading = true
	t.snap.Counters = ws.Counters
	t.snap.LoopsSincePost = ws.LoopsSincePost
	t.snap.Windows = windows
	t.mu.Unlock()
}

// RecordReport tallies one report attempt made at ts.
func (t *Tracker) RecordReport(o Outcome, ts time.Time) {
	t.mu.Lock()
	switch o {
	case OutcomeSent:
		t.snap.Reports.Sent++
		t.snap.LastReport = ts
	case OutcomeFailed:
		t.snap.Reports.Failed++
	case OutcomeSkipped:
		t.snap.Reports.Skipped++
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
