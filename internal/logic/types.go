// Package logic contains pure business logic for parking spot occupancy.
// This package has NO hardware, network, OS, or time.Sleep dependencies.
// All state is explicit and owned by the caller.
package logic

import "time"

// NoEcho is the distance substituted when the sensor hears no echo within
// its wait bound.
const NoEcho = 999.0

// State represents the classified occupancy of a parking spot.
type State string

const (
	StateOccupied State = "occupied"
	StateFree     State = "free"
	StateUnknown  State = "unknown"
)

// Valid reports whether s is one of the three known states.
func (s State) Valid() bool {
	switch s {
	case StateOccupied, StateFree, StateUnknown:
		return true
	}
	return false
}

// SentinelPolicy controls how NoEcho readings enter the window average.
type SentinelPolicy int

const (
	// SentinelInclude averages NoEcho readings in like any other value.
	// A single missed echo pulls the average toward NoEcho.
	SentinelInclude SentinelPolicy = iota
	// SentinelDrop excludes NoEcho readings from the average.
	SentinelDrop
)

// Default classifier and cadence parameters.
const (
	DefaultThresholdCM      = 20.0
	DefaultConfirmations    = 2
	DefaultHeartbeatWindows = 20
	DefaultSamplesPerWindow = 3
	DefaultSampleDelay      = 80 * time.Millisecond
	DefaultWindowPeriod     = 3000 * time.Millisecond
)

// Config holds the static parameters of the classifier and scheduler.
type Config struct {
	ThresholdCM      float64
	Confirmations    int
	HeartbeatWindows int // <= 0 disables the heartbeat
	SamplesPerWindow int
	SampleDelay      time.Duration
	WindowPeriod     time.Duration
	Sentinel         SentinelPolicy
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		ThresholdCM:      DefaultThresholdCM,
		Confirmations:    DefaultConfirmations,
		HeartbeatWindows: DefaultHeartbeatWindows,
		SamplesPerWindow: DefaultSamplesPerWindow,
		SampleDelay:      DefaultSampleDelay,
		WindowPeriod:     DefaultWindowPeriod,
		Sentinel:         SentinelInclude,
	}
}

// Counters are the consecutive-confirmation counters.
// At most one of Occupied and Free is nonzero.
type Counters struct {
	Occupied int
	Free     int
}

// WindowState is everything carried from one window to the next.
type WindowState struct {
	Counters       Counters
	LoopsSincePost int
}

// Decision is the outcome of one window.
type Decision struct {
	Time     time.Time
	Average  float64
	State    State
	Report   bool
	Counters Counters
}
