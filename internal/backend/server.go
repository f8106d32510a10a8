package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/parking-sensor/internal/report"
)

// Server bundles the router and the store for the receiver API.
type Server struct {
	addr   string
	store  *Store
	engine *gin.Engine
	now    func() time.Time
}

// New constructs a server with routes and middleware.
func New(addr string, store *Store) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(logMiddleware())
	engine.Use(corsMiddleware())

	s := &Server{addr: addr, store: store, engine: engine, now: time.Now}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/spot/state", s.handleSpotState)
		v1.GET("/spots", s.handleListSpots)
		v1.GET("/spots/:id", s.handleGetSpot)
	}

	// Routes used by the first prototype app.
	s.engine.POST("/data", s.handleLegacyData)
	s.engine.GET("/devices", s.handleLegacyDevices)
}

func logMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// spotJSON is the response form of a stored spot.
type spotJSON struct {
	report.Payload
	ReceivedAt string `json:"received_at"`
}

func toSpotJSON(sp Spot) spotJSON {
	return spotJSON{
		Payload: report.Payload{
			SpotID:     sp.Record.SpotID,
			State:      string(sp.Record.State),
			DistanceCM: report.Distance(sp.Record.DistanceCM),
			Timestamp:  sp.Record.Timestamp.UTC().Format(report.TimestampLayout),
		},
		ReceivedAt: sp.ReceivedAt.UTC().Format(time.RFC3339),
	}
}

// handleSpotState stores one report from a sensor.
// POST /api/v1/spot/state
func (s *Server) handleSpotState(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := report.ParsePayload(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.store.PutSpot(rec, s.now())
	slog.Info("spot state",
		"spot", rec.SpotID,
		"state", rec.State,
		"distance_cm", rec.DistanceCM,
		"timestamp", rec.Timestamp.Format(report.TimestampLayout))

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListSpots returns the latest report of every spot.
// GET /api/v1/spots
func (s *Server) handleListSpots(c *gin.Context) {
	spots := s.store.Spots()
	data := make([]spotJSON, 0, len(spots))
	for _, sp := range spots {
		data = append(data, toSpotJSON(sp))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": data,
		"meta": gin.H{
			"count": len(data),
		},
	})
}

// handleGetSpot returns the latest report for one spot.
// GET /api/v1/spots/:id
func (s *Server) handleGetSpot(c *gin.Context) {
	id := c.Param("id")
	sp, ok := s.store.Spot(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "spot not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": toSpotJSON(sp)})
}

type legacyRequest struct {
	DeviceID string   `json:"device_id" binding:"required"`
	Distance *float64 `json:"distance" binding:"required"`
	State    any      `json:"state"`
}

// handleLegacyData stores a reading and stamps it with the receive time.
// POST /data
func (s *Server) handleLegacyData(c *gin.Context) {
	var req legacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := s.now().UTC().Format(time.RFC3339)
	s.store.PutDevice(req.DeviceID, Device{
		Distance:  *req.Distance,
		State:     req.State,
		Timestamp: ts,
	})
	slog.Info("device data", "device", req.DeviceID, "distance_cm", *req.Distance, "state", req.State)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleLegacyDevices returns every legacy reading keyed by device id.
// GET /devices
func (s *Server) handleLegacyDevices(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Devices())
}
