package sensor

import "errors"

// FakeSampler is a test double that returns scripted distances.
type FakeSampler struct {
	// Readings contains scripted distances in centimeters.
	// Each call to Read() consumes the next reading.
	Readings []float64

	// index tracks current position in Readings
	index int

	// Calls counts Read invocations.
	Calls int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeSampler creates a FakeSampler with the given readings.
func NewFakeSampler(readings ...float64) *FakeSampler {
	return &FakeSampler{Readings: readings}
}

// Read returns the next scripted reading.
// If readings are exhausted, returns the last reading repeatedly.
func (f *FakeSampler) Read() (float64, error) {
	f.Calls++
	if f.ReadError != nil {
		return 0, f.ReadError
	}

	if len(f.Readings) == 0 {
		return 0, errors.New("no readings configured")
	}

	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r, nil
}

// Close marks the sampler as closed.
func (f *FakeSampler) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds the sampler to the first reading.
func (f *FakeSampler) Reset() {
	f.index = 0
	f.Calls = 0
	f.Closed = false
}
