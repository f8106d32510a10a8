package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultTimeout bounds one POST, so a stalled backend delays the next
// window by at most this much.
const DefaultTimeout = 10 * time.Second

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}

// HTTPReporter POSTs each record as JSON to a backend URL.
type HTTPReporter struct {
	url    string
	client *http.Client
}

// NewHTTPReporter creates a reporter for url. timeout <= 0 uses DefaultTimeout.
func NewHTTPReporter(url string, timeout time.Duration) *HTTPReporter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPReporter{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Reporter.
func (r *HTTPReporter) Name() string { return "http" }

// Report posts rec to the backend.
func (r *HTTPReporter) Report(ctx context.Context, rec Record) error {
	payload, err := FormatPayload(rec)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", r.url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	slog.Debug("POST", "status", resp.StatusCode, "payload", string(payload))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

// Close releases idle connections.
func (r *HTTPReporter) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
