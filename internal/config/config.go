// Package config loads daemon settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/report"
	"github.com/sweeney/parking-sensor/internal/sensor"
)

// Sensor drivers.
const (
	SensorGPIO   = "gpio"
	SensorSerial = "serial"
)

// Config holds settings shared by the sensor daemon and the backend.
type Config struct {
	SpotID     string
	BackendURL string

	// Sensor hardware
	Sensor     string
	GPIOChip   string
	PinTrig    int
	PinEcho    int
	SerialPort string

	// Classifier and cadence
	ThresholdCM      float64
	Confirmations    int
	HeartbeatWindows int
	SamplesPerWindow int
	SampleDelay      time.Duration
	WindowPeriod     time.Duration
	DropNoEcho       bool

	// Transports
	MQTTBroker  string // empty disables MQTT
	HTTPAddr    string // status page; empty disables
	HTTPTimeout time.Duration

	// Backend receiver
	BackendAddr string
}

// Load reads configuration from environment variables (optionally .env).
func Load() Config {
	_ = godotenv.Load() // ignore missing file

	return Config{
		SpotID:     getEnv("SPOT_ID", "P1-1"),
		BackendURL: getEnv("BACKEND_URL", "http://192.168.1.100:8000/api/v1/spot/state"),

		Sensor:     getEnv("SENSOR", SensorGPIO),
		GPIOChip:   getEnv("GPIO_CHIP", "gpiochip0"),
		PinTrig:    getEnvInt("PIN_TRIG", sensor.DefaultPinTrig),
		PinEcho:    getEnvInt("PIN_ECHO", sensor.DefaultPinEcho),
		SerialPort: getEnv("SERIAL_PORT", "/dev/ttyS0"),

		ThresholdCM:      getEnvFloat("THRESHOLD_CM", logic.DefaultThresholdCM),
		Confirmations:    getEnvInt("CONFIRMATIONS", logic.DefaultConfirmations),
		HeartbeatWindows: getEnvInt("HEARTBEAT_WINDOWS", logic.DefaultHeartbeatWindows),
		SamplesPerWindow: getEnvInt("SAMPLES_PER_WINDOW", logic.DefaultSamplesPerWindow),
		SampleDelay:      getEnvDuration("SAMPLE_DELAY", logic.DefaultSampleDelay),
		WindowPeriod:     getEnvDuration("WINDOW_PERIOD", logic.DefaultWindowPeriod),
		DropNoEcho:       getEnvBool("DROP_NO_ECHO", false),

		MQTTBroker:  getEnv("MQTT_BROKER", ""),
		HTTPAddr:    getEnv("HTTP_ADDR", ":80"),
		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", report.DefaultTimeout),

		BackendAddr: getEnv("BACKEND_ADDR", ":8000"),
	}
}

// Validate rejects settings the run loop cannot operate with.
func (c Config) Validate() error {
	var errs []error
	if c.SpotID == "" {
		errs = append(errs, errors.New("spot id is required"))
	}
	if c.SamplesPerWindow < 1 {
		errs = append(errs, fmt.Errorf("samples per window must be >= 1, got %d", c.SamplesPerWindow))
	}
	if c.Confirmations < 1 {
		errs = append(errs, fmt.Errorf("confirmations must be >= 1, got %d", c.Confirmations))
	}
	if c.ThresholdCM <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be > 0, got %v", c.ThresholdCM))
	}
	if c.WindowPeriod <= 0 {
		errs = append(errs, fmt.Errorf("window period must be > 0, got %v", c.WindowPeriod))
	}
	if c.SampleDelay < 0 {
		errs = append(errs, fmt.Errorf("sample delay must be >= 0, got %v", c.SampleDelay))
	}
	if c.Sensor != SensorGPIO && c.Sensor != SensorSerial {
		errs = append(errs, fmt.Errorf("unknown sensor %q (want %s or %s)", c.Sensor, SensorGPIO, SensorSerial))
	}
	return errors.Join(errs...)
}

// Logic returns the classifier and scheduler parameters.
func (c Config) Logic() logic.Config {
	policy := logic.SentinelInclude
	if c.DropNoEcho {
		policy = logic.SentinelDrop
	}
	return logic.Config{
		ThresholdCM:      c.ThresholdCM,
		Confirmations:    c.Confirmations,
		HeartbeatWindows: c.HeartbeatWindows,
		SamplesPerWindow: c.SamplesPerWindow,
		SampleDelay:      c.SampleDelay,
		WindowPeriod:     c.WindowPeriod,
		Sentinel:         policy,
	}
}

func getEnv(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("config: failed to parse int, using default", "key", key, "err", err)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("config: failed to parse float, using default", "key", key, "err", err)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("config: failed to parse bool, using default", "key", key, "err", err)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("config: failed to parse duration, using default", "key", key, "err", err)
		return defaultValue
	}
	return d
}
