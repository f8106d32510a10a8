//go:build linux

package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// triggerPulse is the HC-SR04 trigger width.
const triggerPulse = 10 * time.Microsecond

// GPIOSampler drives an HC-SR04 trigger line and times the echo line using
// kernel edge timestamps from the GPIO character device.
type GPIOSampler struct {
	chip    *gpiocdev.Chip
	trig    *gpiocdev.Line
	echo    *gpiocdev.Line
	events  chan gpiocdev.LineEvent
	timeout time.Duration
}

// NewGPIOSampler requests the trigger and echo lines on the named chip.
func NewGPIOSampler(chipName string, pinTrig, pinEcho int) (*GPIOSampler, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	s := &GPIOSampler{
		chip:    chip,
		events:  make(chan gpiocdev.LineEvent, 16),
		timeout: EchoTimeout,
	}

	trig, err := chip.RequestLine(pinTrig, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request trig pin %d: %w", pinTrig, err)
	}
	s.trig = trig

	echo, err := chip.RequestLine(pinEcho,
		gpiocdev.AsInput,
		gpiocdev.WithPullDown,
		gpiocdev.WithBothEdges,
		gpiocdev.WithEventHandler(s.handleEvent))
	if err != nil {
		trig.Close()
		chip.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", pinEcho, err)
	}
	s.echo = echo

	return s, nil
}

// handleEvent runs on the gpiocdev watcher goroutine.
func (s *GPIOSampler) handleEvent(evt gpiocdev.LineEvent) {
	select {
	case s.events <- evt:
	default:
		// Reader is not waiting; stale edges are dropped.
	}
}

func (s *GPIOSampler) drain() {
	for {
		select {
		case <-s.events:
		default:
			return
		}
	}
}

// Read fires one trigger pulse and measures the echo pulse width.
func (s *GPIOSampler) Read() (float64, error) {
	s.drain()

	if err := s.trig.SetValue(1); err != nil {
		return 0, fmt.Errorf("set trig high: %w", err)
	}
	time.Sleep(triggerPulse)
	if err := s.trig.SetValue(0); err != nil {
		return 0, fmt.Errorf("set trig low: %w", err)
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var rise time.Duration
	risen := false
	for {
		select {
		case evt := <-s.events:
			switch evt.Type {
			case gpiocdev.LineEventRisingEdge:
				rise = evt.Timestamp
				risen = true
			case gpiocdev.LineEventFallingEdge:
				if risen {
					return DistanceFromEcho(evt.Timestamp - rise), nil
				}
			}
		case <-timer.C:
			return NoEcho, nil
		}
	}
}

// Close releases GPIO resources.
// The trigger line is returned to input with pull-down (Pi boot default)
// before closing so the pin is not left driven across a reboot.
func (s *GPIOSampler) Close() error {
	var errs []error

	if s.trig != nil {
		if err := s.trig.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure trig pin: %w", err))
		}
		if err := s.trig.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trig pin: %w", err))
		}
	}
	if s.echo != nil {
		if err := s.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo pin: %w", err))
		}
	}
	if s.chip != nil {
		if err := s.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
