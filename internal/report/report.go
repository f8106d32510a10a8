// Package report serializes occupancy snapshots and transmits them to a
// backend, with an abstraction for testing.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/relvacode/iso8601"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// TimestampLayout is the wire timestamp format (UTC, second resolution).
const TimestampLayout = "2006-01-02T15:04:05Z"

// ErrNotConnected is returned by a Reporter that knows its transport is down.
// The report for that window is skipped, not queued.
var ErrNotConnected = errors.New("not connected")

// Reporter transmits occupancy records.
//
// Report is best effort: the caller logs a failure and moves on to the next
// window. There is no retry.
type Reporter interface {
	// Name identifies the reporter in logs.
	Name() string

	// Report sends one record.
	Report(ctx context.Context, rec Record) error

	// Close releases the transport.
	Close() error
}

// ConnectionStatus reports whether a transport connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemPublisher is implemented by reporters that also carry lifecycle
// events (startup, shutdown).
type SystemPublisher interface {
	PublishSystem(event SystemEvent) error
}

// Record is a snapshot of one spot destined for transmission.
type Record struct {
	SpotID     string
	State      logic.State
	DistanceCM float64
	Timestamp  time.Time
}

// NewRecord builds a record from a window decision.
func NewRecord(spotID string, dec logic.Decision) Record {
	return Record{
		SpotID:     spotID,
		State:      dec.State,
		DistanceCM: dec.Average,
		Timestamp:  dec.Time,
	}
}

// Distance is a centimeter value that marshals with one decimal place.
type Distance float64

// MarshalJSON implements json.Marshaler.
func (d Distance) MarshalJSON() ([]byte, error) {
	f := float64(d)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("distance %v is not representable", f)
	}
	return []byte(strconv.FormatFloat(f, 'f', 1, 64)), nil
}

// Payload is the JSON body of one report.
type Payload struct {
	SpotID     string   `json:"spot_id"`
	State      string   `json:"state"`
	DistanceCM Distance `json:"distance_cm"`
	Timestamp  string   `json:"timestamp"`
}

// FormatPayload creates the JSON payload for a record.
func FormatPayload(rec Record) ([]byte, error) {
	return json.Marshal(Payload{
		SpotID:     rec.SpotID,
		State:      string(rec.State),
		DistanceCM: Distance(rec.DistanceCM),
		Timestamp:  rec.Timestamp.UTC().Format(TimestampLayout),
	})
}

// inboundPayload mirrors Payload with a pointer distance so a missing field
// can be told apart from zero.
type inboundPayload struct {
	SpotID     string    `json:"spot_id"`
	State      string    `json:"state"`
	DistanceCM *Distance `json:"distance_cm"`
	Timestamp  string    `json:"timestamp"`
}

// ParsePayload decodes and validates a JSON report.
func ParsePayload(data []byte) (Record, error) {
	var p inboundPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Record{}, fmt.Errorf("decode payload: %w", err)
	}
	if p.SpotID == "" {
		return Record{}, errors.New("missing spot_id")
	}
	state := logic.State(p.State)
	if !state.Valid() {
		return Record{}, fmt.Errorf("invalid state %q", p.State)
	}
	if p.DistanceCM == nil {
		return Record{}, errors.New("missing distance_cm")
	}
	if *p.DistanceCM < 0 {
		return Record{}, fmt.Errorf("negative distance_cm %v", float64(*p.DistanceCM))
	}
	ts, err := iso8601.ParseString(p.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("invalid timestamp %q: %w", p.Timestamp, err)
	}
	return Record{
		SpotID:     p.SpotID,
		State:      state,
		DistanceCM: float64(*p.DistanceCM),
		Timestamp:  ts.UTC(),
	}, nil
}

// SystemEvent represents a lifecycle event (startup, shutdown).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// SystemPayload is the payload for simple events (LWT) that don't carry a
// full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly. A zero Timestamp is
// omitted.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(TimestampLayout)
	}
	return json.Marshal(SystemPayload{System: inner})
}
