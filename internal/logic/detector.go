package logic

import "time"

// Step runs one window through the classifier and scheduler.
// The input state is not modified; the next state is returned.
func Step(ws WindowState, avg float64, cfg Config) (WindowState, Decision) {
	counters, state := ws.Counters.Classify(avg, cfg.ThresholdCM, cfg.Confirmations)
	loops, report := Schedule(ws.LoopsSincePost, state, cfg.HeartbeatWindows)

	next := WindowState{Counters: counters, LoopsSincePost: loops}
	return next, Decision{
		Average:  avg,
		State:    state,
		Report:   report,
		Counters: counters,
	}
}

// Detector holds the window state for a run loop. Not safe for concurrent use.
type Detector struct {
	cfg     Config
	ws      WindowState
	windows int
}

// NewDetector creates a detector with zeroed counters.
func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Process averages one burst of readings taken at t and returns the decision
// for that window.
func (d *Detector) Process(readings []float64, t time.Time) Decision {
	avg := Average(readings, d.cfg.Sentinel)
	next, dec := Step(d.ws, avg, d.cfg)
	dec.Time = t

	d.ws = next
	d.windows++
	return dec
}

// WindowState returns a copy of the carried state.
func (d *Detector) WindowState() WindowState {
	return d.ws
}

// Windows returns the number of windows processed.
func (d *Detector) Windows() int {
	return d.windows
}
