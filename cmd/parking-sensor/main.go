// Command parking-sensor samples an ultrasonic distance sensor, classifies
// the parking spot as occupied or free, and reports the state to a backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sweeney/parking-sensor/internal/config"
	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/report"
	"github.com/sweeney/parking-sensor/internal/sensor"
	"github.com/sweeney/parking-sensor/internal/status"
	"github.com/sweeney/parking-sensor/internal/web"
)

func main() {
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, nil)))

	cfg := config.Load()
	flag.StringVar(&cfg.SpotID, "spot", cfg.SpotID, "Parking spot identifier")
	flag.StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "Backend URL that receives state reports")
	flag.StringVar(&cfg.Sensor, "sensor", cfg.Sensor, `Sensor driver ("gpio" or "serial")`)
	flag.StringVar(&cfg.GPIOChip, "gpio-chip", cfg.GPIOChip, "GPIO character device")
	flag.IntVar(&cfg.PinTrig, "pin-trig", cfg.PinTrig, "GPIO line driving the trigger")
	flag.IntVar(&cfg.PinEcho, "pin-echo", cfg.PinEcho, "GPIO line reading the echo")
	flag.StringVar(&cfg.SerialPort, "serial-port", cfg.SerialPort, "Serial device for UART sensors")
	flag.Float64Var(&cfg.ThresholdCM, "threshold", cfg.ThresholdCM, "Distance in cm below which the spot counts as occupied")
	flag.IntVar(&cfg.Confirmations, "confirmations", cfg.Confirmations, "Consecutive windows needed to confirm a state")
	flag.IntVar(&cfg.HeartbeatWindows, "heartbeat", cfg.HeartbeatWindows, "Report at least every N windows (0 to disable)")
	flag.IntVar(&cfg.SamplesPerWindow, "samples", cfg.SamplesPerWindow, "Readings averaged per window")
	flag.DurationVar(&cfg.SampleDelay, "sample-delay", cfg.SampleDelay, "Pause after each reading")
	flag.DurationVar(&cfg.WindowPeriod, "period", cfg.WindowPeriod, "Interval between windows")
	flag.BoolVar(&cfg.DropNoEcho, "drop-no-echo", cfg.DropNoEcho, "Exclude no-echo readings from the window average")
	flag.StringVar(&cfg.MQTTBroker, "broker", cfg.MQTTBroker, "MQTT broker address (empty to disable)")
	flag.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "HTTP status address (empty to disable)")
	flag.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout for one backend POST")
	printDistance := flag.Bool("print-distance", false, "Take one window, print the distance and exit")

	flag.Parse()

	if err := run(cfg, *printDistance); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, printDistance bool) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	lc := cfg.Logic()

	sampler, err := openSampler(cfg)
	if err != nil {
		return fmt.Errorf("init sensor: %w", err)
	}
	defer sampler.Close()

	// Print distance mode
	if printDistance {
		readings, err := sampleWindow(sampler, lc.SamplesPerWindow, lc.SampleDelay, time.Sleep)
		if err != nil {
			return fmt.Errorf("read sensor: %w", err)
		}
		fmt.Printf("Distance: %.1f cm %v\n", logic.Average(readings, lc.Sentinel), readings)
		return nil
	}

	tracker := status.NewTracker(time.Now(), status.Config{
		SpotID:           cfg.SpotID,
		Sensor:           cfg.Sensor,
		BackendURL:       cfg.BackendURL,
		ThresholdCM:      cfg.ThresholdCM,
		Confirmations:    cfg.Confirmations,
		HeartbeatWindows: cfg.HeartbeatWindows,
		SamplesPerWindow: cfg.SamplesPerWindow,
		SampleDelayMs:    cfg.SampleDelay.Milliseconds(),
		WindowPeriodMs:   cfg.WindowPeriod.Milliseconds(),
		DropNoEcho:       cfg.DropNoEcho,
		Broker:           cfg.MQTTBroker,
		HTTPAddr:         cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	reporters := []report.Reporter{report.NewHTTPReporter(cfg.BackendURL, cfg.HTTPTimeout)}

	var (
		system     report.SystemPublisher
		mqttStatus report.ConnectionStatus
	)
	if cfg.MQTTBroker != "" {
		// STARTUP and RECONNECTED are published by the reporter on every
		// broker connect, so they survive a broker outage.
		m, err := report.NewMQTTReporter(cfg.MQTTBroker, cfg.SpotID, func(event string) []byte {
			tracker.SetMQTTConnected(true)
			return status.FormatStatusEvent(tracker.Snapshot(), event, "")
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		reporters = append(reporters, m)
		system = m
		mqttStatus = m
		tracker.SetMQTTConnected(m.IsConnected())
	}
	defer func() {
		for _, r := range reporters {
			if err := r.Close(); err != nil {
				slog.Warn("close reporter", "reporter", r.Name(), "err", err)
			}
		}
	}()

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http server error", "err", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		slog.Info("http status server listening", "addr", cfg.HTTPAddr)
	}

	slog.Info("started",
		"spot", cfg.SpotID,
		"sensor", cfg.Sensor,
		"backend", cfg.BackendURL,
		"threshold_cm", cfg.ThresholdCM,
		"confirmations", cfg.Confirmations,
		"heartbeat", cfg.HeartbeatWindows,
		"period", cfg.WindowPeriod)

	ticker := time.NewTicker(lc.WindowPeriod)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(sampler, reporters, system, mqttStatus, tracker, lc, cfg.SpotID, time.Now, time.Sleep, ticker.C, sigCh)
}

func openSampler(cfg config.Config) (sensor.Sampler, error) {
	switch cfg.Sensor {
	case config.SensorSerial:
		return sensor.NewSerialSampler(cfg.SerialPort)
	default:
		return sensor.NewGPIOSampler(cfg.GPIOChip, cfg.PinTrig, cfg.PinEcho)
	}
}

// sampleWindow takes n readings, pausing for delay after each one.
func sampleWindow(sampler sensor.Sampler, n int, delay time.Duration, sleep func(time.Duration)) ([]float64, error) {
	readings := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		d, err := sampler.Read()
		if err != nil {
			return nil, fmt.Errorf("reading %d: %w", i+1, err)
		}
		readings = append(readings, d)
		sleep(delay)
	}
	return readings, nil
}

func runLoop(sampler sensor.Sampler, reporters []report.Reporter, system report.SystemPublisher, mqttStatus report.ConnectionStatus, tracker *status.Tracker, cfg logic.Config, spotID string, now func() time.Time, sleep func(time.Duration), tick <-chan time.Time, sig <-chan os.Signal) error {
	detector := logic.NewDetector(cfg)
	ctx := context.Background()

	for {
		select {
		case s := <-sig:
			slog.Info("shutting down", "signal", s)
			if system == nil {
				return nil
			}
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
			snap := tracker.Snapshot()
			event := report.SystemEvent{
				Timestamp:  now(),
				Event:      "SHUTDOWN",
				Reason:     signalName,
				Retained:   true,
				RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
			}
			if err := system.PublishSystem(event); err != nil {
				slog.Warn("failed to publish shutdown event", "err", err)
			} else {
				slog.Info("published shutdown event")
			}
			return nil

		case <-tick:
			readings, err := sampleWindow(sampler, cfg.SamplesPerWindow, cfg.SampleDelay, sleep)
			if err != nil {
				slog.Warn("sensor read error, skipping window", "err", err)
				continue
			}

			dec := detector.Process(readings, now())
			slog.Info("window",
				"distance_cm", fmt.Sprintf("%.1f", dec.Average),
				"state", dec.State,
				"occupied", dec.Counters.Occupied,
				"free", dec.Counters.Free)

			if dec.Report {
				rec := report.NewRecord(spotID, dec)
				for _, r := range reporters {
					tracker.RecordReport(send(ctx, r, rec), rec.Timestamp)
				}
			}

			tracker.Update(dec, detector.WindowState(), detector.Windows())
			if mqttStatus != nil {
				tracker.SetMQTTConnected(mqttStatus.IsConnected())
			}
		}
	}
}

// send delivers one record and classifies the result. Failures are logged
// and never retried.
func send(ctx context.Context, r report.Reporter, rec report.Record) status.Outcome {
	err := r.Report(ctx, rec)
	switch {
	case err == nil:
		slog.Info("report sent", "reporter", r.Name(), "state", rec.State)
		return status.OutcomeSent
	case errors.Is(err, report.ErrNotConnected):
		slog.Warn("not connected, skipping report", "reporter", r.Name())
		return status.OutcomeSkipped
	default:
		slog.Warn("report failed", "reporter", r.Name(), "err", err)
		return status.OutcomeFailed
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
