package backend

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/report"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

var received = time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC)

func newTestServer() (*Server, *Store) {
	store := NewStore()
	srv := New(":0", store)
	srv.now = func() time.Time { return received }
	return srv, store
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestPostSpotState(t *testing.T) {
	srv, store := newTestServer()

	w := do(t, srv, http.MethodPost, "/api/v1/spot/state",
		`{"spot_id":"P1-1","state":"occupied","distance_cm":9.0,"timestamp":"2026-01-01T12:00:03Z"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	sp, ok := store.Spot("P1-1")
	require.True(t, ok)
	assert.Equal(t, logic.StateOccupied, sp.Record.State)
	assert.Equal(t, 9.0, sp.Record.DistanceCM)
	assert.True(t, sp.Record.Timestamp.Equal(time.Date(2026, 1, 1, 12, 0, 3, 0, time.UTC)))
	assert.Equal(t, received, sp.ReceivedAt)
}

func TestPostSpotStateLatestWins(t *testing.T) {
	srv, store := newTestServer()

	do(t, srv, http.MethodPost, "/api/v1/spot/state",
		`{"spot_id":"P1-1","state":"occupied","distance_cm":9.0,"timestamp":"2026-01-01T12:00:03Z"}`)
	do(t, srv, http.MethodPost, "/api/v1/spot/state",
		`{"spot_id":"P1-1","state":"free","distance_cm":150.2,"timestamp":"2026-01-01T12:00:06Z"}`)

	sp, ok := store.Spot("P1-1")
	require.True(t, ok)
	assert.Equal(t, logic.StateFree, sp.Record.State)
}

func TestPostSpotStateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `state=occupied`},
		{"missing spot", `{"state":"free","distance_cm":1.0,"timestamp":"2026-01-01T12:00:03Z"}`},
		{"bad state", `{"spot_id":"P1-1","state":"vacant","distance_cm":1.0,"timestamp":"2026-01-01T12:00:03Z"}`},
		{"bad timestamp", `{"spot_id":"P1-1","state":"free","distance_cm":1.0,"timestamp":"yesterday"}`},
		{"missing distance", `{"spot_id":"P1-1","state":"free","timestamp":"2026-01-01T12:00:03Z"}`},
		{"negative distance", `{"spot_id":"P1-1","state":"occupied","distance_cm":-3.5,"timestamp":"2026-01-01T12:00:03Z"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer()
			w := do(t, srv, http.MethodPost, "/api/v1/spot/state", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.Spots())
		})
	}
}

func TestListSpots(t *testing.T) {
	srv, store := newTestServer()
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.PutSpot(report.Record{SpotID: "P1-2", State: logic.StateFree, DistanceCM: 140, Timestamp: ts}, received)
	store.PutSpot(report.Record{SpotID: "P1-1", State: logic.StateUnknown, DistanceCM: 999, Timestamp: ts}, received)

	w := do(t, srv, http.MethodGet, "/api/v1/spots", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []struct {
			SpotID     string  `json:"spot_id"`
			State      string  `json:"state"`
			DistanceCM float64 `json:"distance_cm"`
			Timestamp  string  `json:"timestamp"`
			ReceivedAt string  `json:"received_at"`
		} `json:"data"`
		Meta struct {
			Count int `json:"count"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.Len(t, resp.Data, 2)
	assert.Equal(t, 2, resp.Meta.Count)
	assert.Equal(t, "P1-1", resp.Data[0].SpotID)
	assert.Equal(t, "unknown", resp.Data[0].State)
	assert.Equal(t, "P1-2", resp.Data[1].SpotID)
	assert.Equal(t, 140.0, resp.Data[1].DistanceCM)
	assert.Equal(t, "2026-01-01T12:00:00Z", resp.Data[1].Timestamp)
	assert.Equal(t, "2026-01-01T12:00:05Z", resp.Data[1].ReceivedAt)
}

func TestGetSpot(t *testing.T) {
	srv, store := newTestServer()
	store.PutSpot(report.Record{SpotID: "P1-1", State: logic.StateOccupied, DistanceCM: 9.04, Timestamp: received}, received)

	w := do(t, srv, http.MethodGet, "/api/v1/spots/P1-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"distance_cm":9.0`)

	w = do(t, srv, http.MethodGet, "/api/v1/spots/P9-9", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLegacyData(t *testing.T) {
	srv, store := newTestServer()

	w := do(t, srv, http.MethodPost, "/data", `{"device_id":"esp32-01","distance":12.34,"state":false}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	devices := store.Devices()
	require.Contains(t, devices, "esp32-01")
	assert.Equal(t, 12.34, devices["esp32-01"].Distance)
	assert.Equal(t, false, devices["esp32-01"].State)
	assert.Equal(t, "2026-01-01T12:00:05Z", devices["esp32-01"].Timestamp)

	w = do(t, srv, http.MethodGet, "/devices", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t,
		`{"esp32-01":{"distance":12.34,"state":false,"timestamp":"2026-01-01T12:00:05Z"}}`,
		w.Body.String())
}

func TestLegacyDataRequiresFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing device", `{"distance":12.3,"state":true}`},
		{"missing distance", `{"device_id":"esp32-01","state":true}`},
		{"malformed", `{"device_id":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, store := newTestServer()
			w := do(t, srv, http.MethodPost, "/data", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, store.Devices())
		})
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer()

	w := do(t, srv, http.MethodOptions, "/api/v1/spot/state", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
