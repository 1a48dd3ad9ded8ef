package mqttbridge

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/salus"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	setTimeout     = 30 * time.Second
)

// Setter applies setpoint requests. server.SerialThermostat satisfies it.
type Setter interface {
	UpdateTemperature(ctx context.Context, id string, value float64) (int, error)
}

// Config holds broker connection settings
type Config struct {
	Broker      string // e.g. tcp://localhost:1883 or ssl://host:8883
	TopicPrefix string
	ClientID    string // random when empty
	Username    string
	Password    string
}

// SetResult is published to ResultTopic after each setpoint request.
type SetResult struct {
	Value  float64 `json:"value,omitempty"`
	Status int     `json:"status,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Bridge publishes device summaries to MQTT and applies setpoint requests.
type Bridge struct {
	client mqtt.Client
	prefix string
	setter Setter
	logger *zap.Logger

	// inflight tracks setpoint requests still being applied
	inflight sync.WaitGroup
}

// New builds a Bridge. It does not connect; call Connect.
func New(cfg Config, setter Setter) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	if setter == nil {
		return nil, errors.New("setter is required")
	}

	b := &Bridge{
		prefix: normalizePrefix(cfg.TopicPrefix),
		setter: setter,
		logger: logging.GetLogger(),
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = randomClientID()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(AvailabilityTopic(b.prefix), "offline", 1, true)
	opts.OnConnect = b.onConnect
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		b.logger.Warn("MQTT connection lost", zap.Error(err))
	}

	b.client = mqtt.NewClient(opts)
	return b, nil
}

// newWithClient wires a Bridge around an existing client
func newWithClient(client mqtt.Client, prefix string, setter Setter) *Bridge {
	return &Bridge{
		client: client,
		prefix: normalizePrefix(prefix),
		setter: setter,
		logger: logging.GetLogger(),
	}
}

// Prefix returns the topic prefix in use
func (b *Bridge) Prefix() string {
	return b.prefix
}

// Connect dials the broker and waits for the first connection or ctx.
// Subscriptions are (re)made on every connect.
func (b *Bridge) Connect(ctx context.Context) error {
	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close waits for in-flight setpoint requests, publishes "offline" and
// disconnects.
func (b *Bridge) Close() {
	b.inflight.Wait()
	if !b.client.IsConnected() {
		return
	}
	token := b.client.Publish(AvailabilityTopic(b.prefix), 1, true, "offline")
	token.WaitTimeout(publishTimeout)
	b.client.Disconnect(250)
}

func (b *Bridge) onConnect(client mqtt.Client) {
	b.logger.Info("MQTT connected", zap.String("prefix", b.prefix))

	if err := wait(client.Publish(AvailabilityTopic(b.prefix), 1, true, "online")); err != nil {
		b.logger.Error("Failed to publish availability", zap.Error(err))
	}
	if err := wait(client.Subscribe(SetTopicFilter(b.prefix), 1, b.handleSet)); err != nil {
		b.logger.Error("Failed to subscribe to setpoint topic",
			zap.String("topic", SetTopicFilter(b.prefix)),
			zap.Error(err),
		)
	}
}

// Publish sends each summary as retained JSON to its state topic.
// All devices are attempted; the errors are joined.
func (b *Bridge) Publish(summaries []salus.DeviceSummary) error {
	var errs []error
	for _, s := range summaries {
		payload, err := json.Marshal(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", s.ID, err))
			continue
		}
		topic := StateTopic(b.prefix, s.ID)
		if err := wait(b.client.Publish(topic, 0, true, payload)); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", topic, err))
		}
	}
	return errors.Join(errs...)
}

// handleSet starts applying one setpoint request and returns. It runs on
// paho's router goroutine, which must not block while OrderMatters is on.
func (b *Bridge) handleSet(client mqtt.Client, msg mqtt.Message) {
	dsn, ok := DeviceFromSetTopic(b.prefix, msg.Topic())
	if !ok {
		b.logger.Debug("Ignoring message on unexpected topic", zap.String("topic", msg.Topic()))
		return
	}
	// Retained commands would replay on every reconnect
	if msg.Retained() {
		b.logger.Warn("Ignoring retained setpoint request", zap.String("dsn", dsn))
		return
	}

	request := msg.Payload()
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.reply(client, dsn, b.apply(dsn, request))
	}()
}

func (b *Bridge) reply(client mqtt.Client, dsn string, result SetResult) {
	payload, _ := json.Marshal(result)
	if err := wait(client.Publish(ResultTopic(b.prefix, dsn), 1, false, payload)); err != nil {
		b.logger.Error("Failed to publish setpoint result", zap.String("dsn", dsn), zap.Error(err))
	}
}

func (b *Bridge) apply(dsn string, payload []byte) SetResult {
	value, err := ParseSetpointPayload(payload)
	if err != nil {
		b.logger.Warn("Rejected setpoint request",
			zap.String("dsn", dsn),
			zap.String("payload", strings.TrimSpace(string(payload))),
			zap.Error(err),
		)
		return SetResult{Error: salus.ShortErrorMessage(err)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), setTimeout)
	defer cancel()

	status, err := b.setter.UpdateTemperature(ctx, dsn, value)
	if err != nil {
		b.logger.Error("Setpoint request failed", zap.String("dsn", dsn), zap.Error(err))
		return SetResult{Value: value, Error: salus.ShortErrorMessage(err)}
	}

	b.logger.Info("Setpoint applied from MQTT",
		zap.String("dsn", dsn),
		zap.Float64("value", value),
		zap.Int("status", status),
	)
	return SetResult{Value: value, Status: status}
}

func wait(token mqtt.Token) error {
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("timed out waiting for broker")
	}
	return token.Error()
}

func randomClientID() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return "salus-bridge-" + hex.EncodeToString(buf)
}
