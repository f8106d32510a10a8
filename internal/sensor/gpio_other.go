//go:build !linux

package sensor

import "errors"

// GPIOSampler is not available on non-Linux platforms.
type GPIOSampler struct{}

// NewGPIOSampler returns an error on non-Linux platforms.
func NewGPIOSampler(chipName string, pinTrig, pinEcho int) (*GPIOSampler, error) {
	return nil, errors.New("sensor: gpio not supported on this platform (requires Linux)")
}

// Read is not implemented on non-Linux platforms.
func (s *GPIOSampler) Read() (float64, error) {
	return 0, errors.New("sensor: gpio not supported")
}

// Close is not implemented on non-Linux platforms.
func (s *GPIOSampler) Close() error {
	return nil
}
