package report

import "context"

// FakeReporter records reports for test assertions.
type FakeReporter struct {
	// Records contains all records that were reported.
	Records []Record

	// Payloads contains the JSON payloads that were reported.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// ReportError, if set, will be returned by Report.
	ReportError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Disconnected makes Report return ErrNotConnected.
	Disconnected bool

	// Attempts counts Report calls, including failed ones.
	Attempts int

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeReporter creates a FakeReporter for testing.
func NewFakeReporter() *FakeReporter {
	return &FakeReporter{}
}

// Name implements Reporter.
func (f *FakeReporter) Name() string { return "fake" }

// Report records rec.
func (f *FakeReporter) Report(ctx context.Context, rec Record) error {
	f.Attempts++
	if f.Disconnected {
		return ErrNotConnected
	}
	if f.ReportError != nil {
		return f.ReportError
	}

	payload, err := FormatPayload(rec)
	if err != nil {
		return err
	}
	f.Records = append(f.Records, rec)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakeReporter) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// IsConnected reports the inverse of Disconnected.
func (f *FakeReporter) IsConnected() bool {
	return !f.Disconnected
}

// Close marks the reporter as closed.
func (f *FakeReporter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded state.
func (f *FakeReporter) Reset() {
	*f = FakeReporter{}
}
