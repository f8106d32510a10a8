package sensor

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// UART ultrasonic modules (A02YYUW and similar) stream 4-byte frames:
// 0xFF, distance high byte, distance low byte, checksum of the first three.
// Distance is in millimeters.
const (
	frameHeader = 0xFF
	frameLen    = 4
)

// DefaultBaudRate is the baud rate of the UART modules.
const DefaultBaudRate = 9600

// serialPort is the subset of serial.Port the sampler uses.
type serialPort interface {
	io.ReadCloser
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// SerialSampler reads distances from a UART ultrasonic module.
type SerialSampler struct {
	port    serialPort
	timeout time.Duration
	now     func() time.Time
	buf     []byte
}

// NewSerialSampler opens the serial port at path (e.g. /dev/ttyS0) at 9600 8N1.
func NewSerialSampler(path string) (*SerialSampler, error) {
	mode := &serial.Mode{
		BaudRate: DefaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return newSerialSampler(port, time.Now), nil
}

func newSerialSampler(port serialPort, now func() time.Time) *SerialSampler {
	return &SerialSampler{
		port: port,
		// A module streams a frame roughly every 100ms, so wait longer than
		// the GPIO echo bound.
		timeout: 4 * EchoTimeout,
		now:     now,
		buf:     make([]byte, 0, 64),
	}
}

// Read discards buffered frames and returns the distance from the next
// complete frame. Returns NoEcho if none arrives within the timeout or the
// module reports zero distance.
func (s *SerialSampler) Read() (float64, error) {
	if err := s.port.ResetInputBuffer(); err != nil {
		return 0, fmt.Errorf("reset serial input: %w", err)
	}
	s.buf = s.buf[:0]

	deadline := s.now().Add(s.timeout)
	chunk := make([]byte, 32)
	for {
		remaining := deadline.Sub(s.now())
		if remaining <= 0 {
			return NoEcho, nil
		}
		if err := s.port.SetReadTimeout(remaining); err != nil {
			return 0, fmt.Errorf("set serial timeout: %w", err)
		}

		n, err := s.port.Read(chunk)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("read serial: %w", err)
		}
		if n == 0 {
			if err != nil {
				return NoEcho, nil
			}
			continue
		}

		s.buf = append(s.buf, chunk[:n]...)
		mm, rest, ok := scanFrame(s.buf)
		s.buf = append(s.buf[:0], rest...)
		if !ok {
			continue
		}
		if mm == 0 {
			return NoEcho, nil
		}
		return float64(mm) / 10, nil
	}
}

// Close closes the serial port.
func (s *SerialSampler) Close() error {
	return s.port.Close()
}

// scanFrame finds the first valid frame in b. It returns the distance in
// millimeters, the unconsumed tail of b, and whether a frame was found.
// Bytes that cannot start a valid frame are skipped.
func scanFrame(b []byte) (int, []byte, bool) {
	for i := 0; i+frameLen <= len(b); i++ {
		if b[i] != frameHeader {
			continue
		}
		hi, lo, sum := b[i+1], b[i+2], b[i+3]
		if byte(frameHeader+int(hi)+int(lo)) != sum {
			continue
		}
		return int(hi)<<8 | int(lo), b[i+frameLen:], true
	}

	// Keep a possible partial frame at the end.
	for i := len(b) - frameLen + 1; i < len(b); i++ {
		if i >= 0 && b[i] == frameHeader {
			return 0, b[i:], false
		}
	}
	return 0, nil, false
}
