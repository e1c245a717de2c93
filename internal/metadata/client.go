// internal/metadata/client.go
package metadata

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const connectTimeout = 5 * time.Second

// ErrMetadataNotReady is returned when the daemon has not published any
// metadata yet.
var ErrMetadataNotReady = errors.New("metadata not received yet")

// Client is a thin subscriber to the metadata daemon. It exposes exactly the
// two calls this layer needs: the current metadata snapshot, and waiting for
// the start signal.
type Client struct {
	mqtt        mqtt.Client
	topicPrefix string
	logger      *zap.Logger

	mu      sync.Mutex
	current *Metadata
	startCh chan struct{}
}

// Connect connects to the broker and subscribes to the daemon's state and
// start-broadcast topics.
func Connect(brokerURL, topicPrefix string, logger *zap.Logger) (*Client, error) {
	c := &Client{
		topicPrefix: topicPrefix,
		logger:      logger.With(zap.String("component", "metadata")),
		startCh:     make(chan struct{}, 1),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("robot-kit-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	c.mqtt = mqtt.NewClient(opts)
	token := c.mqtt.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("timed out connecting to metadata broker %s", brokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to metadata broker: %w", err)
	}

	if err := c.subscribe(topicPrefix+"/astmetad", c.onState); err != nil {
		c.mqtt.Disconnect(0)
		return nil, err
	}
	if err := c.subscribe(topicPrefix+"/broadcast/start_button", c.onStart); err != nil {
		c.mqtt.Disconnect(0)
		return nil, err
	}

	c.logger.Info("Connected to metadata broker", zap.String("broker", brokerURL))
	return c, nil
}

func (c *Client) subscribe(topic string, handler mqtt.MessageHandler) error {
	token := c.mqtt.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timed out subscribing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) onState(_ mqtt.Client, msg mqtt.Message) {
	meta, err := parseStateMessage(msg.Payload())
	if err != nil {
		c.logger.Warn("Ignoring bad metadata message", zap.Error(err))
		return
	}

	c.mu.Lock()
	c.current = meta
	c.mu.Unlock()

	c.logger.Debug("Metadata updated",
		zap.String("arena", meta.Arena),
		zap.Int("zone", meta.Zone),
		zap.String("mode", string(meta.Mode)),
	)
}

func (c *Client) onStart(_ mqtt.Client, _ mqtt.Message) {
	c.signalStart()
}

func (c *Client) signalStart() {
	select {
	case c.startCh <- struct{}{}:
	default:
	}
}

// Metadata returns the latest metadata snapshot from the daemon.
func (c *Client) Metadata() (Metadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Metadata{}, ErrMetadataNotReady
	}
	return *c.current, nil
}

// WaitStart blocks until the start signal is broadcast or the context ends.
func (c *Client) WaitStart(ctx context.Context) error {
	select {
	case <-c.startCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close disconnects from the broker.
func (c *Client) Close() {
	if c.mqtt != nil && c.mqtt.IsConnected() {
		c.mqtt.Disconnect(250)
	}
}
