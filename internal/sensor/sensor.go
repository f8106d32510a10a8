// Package sensor provides ultrasonic distance reading with hardware abstraction.
// The GPIO implementation drives an HC-SR04 through the Linux GPIO character
// device. The serial implementation reads a UART ultrasonic module.
// The fake implementation allows testing without hardware.
package sensor

import (
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// NoEcho is returned by Read when no echo arrives within the wait bound.
const NoEcho = logic.NoEcho

// Sampler reads one distance measurement.
type Sampler interface {
	// Read returns the distance in centimeters, or NoEcho on timeout.
	// An error means the hardware itself failed, not a missed echo.
	Read() (float64, error)

	// Close releases hardware resources.
	Close() error
}

// Pin definitions (BCM numbering).
const (
	DefaultPinTrig = 5
	DefaultPinEcho = 18
)

// EchoTimeout is the longest the samplers wait for an echo.
const EchoTimeout = 30 * time.Millisecond

// usPerCM is the round-trip time of sound per centimeter of distance.
const usPerCM = 58.0

// DistanceFromEcho converts an echo pulse width to centimeters.
// A zero, negative, or over-long pulse is reported as NoEcho.
func DistanceFromEcho(pulse time.Duration) float64 {
	if pulse <= 0 || pulse > EchoTimeout {
		return NoEcho
	}
	return float64(pulse) / float64(time.Microsecond) / usPerCM
}
