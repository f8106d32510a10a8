package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// StateTopic is the MQTT topic carrying a spot's reports.
func StateTopic(spotID string) string {
	return "parking/" + spotID + "/state"
}

// SystemTopic is the MQTT topic carrying a spot's lifecycle events.
func SystemTopic(spotID string) string {
	return "parking/" + spotID + "/system"
}

// StatusFunc renders the retained lifecycle payload published on each
// broker connect. event is "STARTUP" on the first connect and
// "RECONNECTED" after that. A nil result falls back to a bare event.
type StatusFunc func(event string) []byte

// MQTTReporter mirrors records to an MQTT broker.
type MQTTReporter struct {
	client    paho.Client
	spotID    string
	status    StatusFunc
	announced atomic.Bool
}

// NewMQTTReporter creates a reporter for broker. It does not wait long for
// the broker: the client keeps retrying in the background and Report returns
// ErrNotConnected until a connection is open. Every successful connect
// replaces the retained OFFLINE will with a STARTUP or RECONNECTED event
// built by status.
func NewMQTTReporter(broker, spotID string, status StatusFunc) (*MQTTReporter, error) {
	return newMQTTReporter(broker, spotID, status, 2*time.Second)
}

func newMQTTReporter(broker, spotID string, status StatusFunc, connectWait time.Duration) (*MQTTReporter, error) {
	// The will is stored by the broker at connect time, so it carries no
	// timestamp.
	will, err := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "LWT"})
	if err != nil {
		return nil, fmt.Errorf("format will: %w", err)
	}

	p := &MQTTReporter{spotID: spotID, status: status}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID(spotID)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetBinaryWill(SystemTopic(spotID), will, 1, true).
		SetOnConnectHandler(func(c paho.Client) {
			slog.Info("mqtt: connected", "broker", broker)
			p.handleConnect(c)
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			slog.Warn("mqtt: connection lost", "err", err)
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(connectWait) {
		slog.Warn("mqtt: broker not reachable yet, retrying in background", "broker", broker)
	} else if err := token.Error(); err != nil {
		slog.Warn("mqtt: connect failed", "broker", broker, "err", err)
	}

	return p, nil
}

func clientID(spotID string) string {
	return fmt.Sprintf("parking-sensor-%s-%s", spotID, uuid.NewString()[:8])
}

// handleConnect announces the spot on its retained system topic, replacing
// any OFFLINE will left by a previous session.
func (p *MQTTReporter) handleConnect(c paho.Client) {
	event := "RECONNECTED"
	if p.announced.CompareAndSwap(false, true) {
		event = "STARTUP"
	}

	var raw []byte
	if p.status != nil {
		raw = p.status(event)
	}
	payload, err := FormatSystemPayload(SystemEvent{
		Timestamp:  time.Now(),
		Event:      event,
		RawPayload: raw,
	})
	if err != nil {
		slog.Warn("mqtt: format connect event", "event", event, "err", err)
		return
	}

	token := c.Publish(SystemTopic(p.spotID), 1, true, payload)
	if err := waitToken(context.Background(), token, "publish "+event); err != nil {
		slog.Warn("mqtt: connect event not published", "event", event, "err", err)
		return
	}
	slog.Info("mqtt: published event", "event", event)
}

// Name implements Reporter.
func (p *MQTTReporter) Name() string { return "mqtt" }

// IsConnected reports whether a broker connection is open right now. It is
// false while the client is still retrying in the background.
func (p *MQTTReporter) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Report publishes rec, retained, on the spot's state topic.
func (p *MQTTReporter) Report(ctx context.Context, rec Record) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := FormatPayload(rec)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), retained so new subscribers see the latest state
	token := p.client.Publish(StateTopic(rec.SpotID), 0, true, payload)
	return waitToken(ctx, token, "publish")
}

// PublishSystem publishes a lifecycle event on the spot's system topic.
func (p *MQTTReporter) PublishSystem(event SystemEvent) error {
	if !p.client.IsConnectionOpen() {
		return ErrNotConnected
	}

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	token := p.client.Publish(SystemTopic(p.spotID), 1, event.Retained, payload)
	return waitToken(context.Background(), token, "publish system")
}

func waitToken(ctx context.Context, token paho.Token, op string) error {
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("%s timeout", op)
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTReporter) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
