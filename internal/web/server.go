// Package web serves the on-device status page of a parking-sensor node.
//
// The page shows the spot's current classification, the window counters
// that feed the confirmation and heartbeat rules, and how many reports
// reached the backend. /spot.json returns the current classification in
// the same form the backend receives it.
package web

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/sweeney/parking-sensor/internal/report"
	"github.com/sweeney/parking-sensor/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads spot state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatusPage)
	mux.HandleFunc("/index.html", s.handleStatusPage)
	mux.HandleFunc("/index.json", s.handleStatusJSON)
	mux.HandleFunc("/spot.json", s.handleSpot)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		slog.Warn("web: render status page", "spot", snap.Config.SpotID, "err", err)
	}
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleSpot returns the latest window's classification as a spot report.
// Until the first window is classified there is no distance to report.
func (s *Server) handleSpot(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	if !snap.HasReading {
		http.Error(w, "no window classified yet", http.StatusServiceUnavailable)
		return
	}

	payload, err := report.FormatPayload(report.Record{
		SpotID:     snap.Config.SpotID,
		State:      snap.State,
		DistanceCM: snap.AverageCM,
		Timestamp:  snap.Now,
	})
	if err != nil {
		slog.Warn("web: format spot", "spot", snap.Config.SpotID, "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}
