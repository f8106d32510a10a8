// Package backend implements the HTTP receiver that collects spot reports
// from parking sensors and serves the latest state per spot.
package backend

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/parking-sensor/internal/report"
)

// Spot is the latest report received for one spot.
type Spot struct {
	Record     report.Record
	ReceivedAt time.Time
}

// Device is the latest reading posted to the legacy /data endpoint.
type Device struct {
	Distance  float64 `json:"distance"`
	State     any     `json:"state"`
	Timestamp string  `json:"timestamp"`
}

// Store keeps the latest record per spot in memory. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	spots   map[string]Spot
	devices map[string]Device
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		spots:   make(map[string]Spot),
		devices: make(map[string]Device),
	}
}

// PutSpot replaces the stored record for rec.SpotID.
func (s *Store) PutSpot(rec report.Record, receivedAt time.Time) {
	s.mu.Lock()
	s.spots[rec.SpotID] = Spot{Record: rec, ReceivedAt: receivedAt}
	s.mu.Unlock()
}

// Spot returns the latest record for id.
func (s *Store) Spot(id string) (Spot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spots[id]
	return sp, ok
}

// Spots returns the latest record of every spot, ordered by spot id.
func (s *Store) Spots() []Spot {
	s.mu.RLock()
	out := make([]Spot, 0, len(s.spots))
	for _, sp := range s.spots {
		out = append(out, sp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Record.SpotID < out[j].Record.SpotID
	})
	return out
}

// PutDevice replaces the stored legacy reading for id.
func (s *Store) PutDevice(id string, d Device) {
	s.mu.Lock()
	s.devices[id] = d
	s.mu.Unlock()
}

// Devices returns a copy of all legacy readings keyed by device id.
func (s *Store) Devices() map[string]Device {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Device, len(s.devices))
	for id, d := range s.devices {
		out[id] = d
	}
	return out
}
