package mqtt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"riego-dashboard/internal/config"
)

const (
	publishTimeout = 5 * time.Second
	connectPoll    = 200 * time.Millisecond
)

var (
	ErrNotConnected  = errors.New("mqtt client not connected")
	ErrClientStopped = errors.New("mqtt client stopped")
)

// Client is a paho connection to the broker that the forwarder publishes on.
type Client struct {
	client    mqtt.Client
	broker    string
	clientID  string
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	// maxConnectTime bounds the retries of one Connect call.
	maxConnectTime time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
}

// DefaultClientID is used when MQTT_CLIENT_ID is empty; brokers reject
// duplicate ids, so it carries a random suffix.
func DefaultClientID() string {
	return "riego-dashboard-" + uuid.NewString()[:8]
}

func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	clientID := cfg.MQTTClientID
	if clientID == "" {
		clientID = DefaultClientID()
	}
	c := &Client{
		broker:         fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort),
		clientID:       clientID,
		logger:         logger,
		maxConnectTime: 30 * time.Second,
		stopCh:         make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)

	// The initial connection is retried by Connect with backoff; paho takes
	// over once it has succeeded.
	opts.SetConnectRetry(false)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(5 * time.Second)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", c.broker, "client_id", clientID)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c
}

func (c *Client) ClientID() string { return c.clientID }

// Connect dials the broker, retrying with exponential backoff until it
// succeeds, ctx is done, Disconnect is called or maxConnectTime elapses.
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return ErrClientStopped
	default:
	}
	if c.IsConnected() {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = c.maxConnectTime

	attempt := func() error {
		token := c.client.Connect()
		for !token.WaitTimeout(connectPoll) {
			if err := ctx.Err(); err != nil {
				return backoff.Permanent(err)
			}
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn("mqtt connect failed, retrying", "broker", c.broker, "in", next, "error", err)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(bo, ctx), notify)
	select {
	case <-c.stopCh:
		return ErrClientStopped
	default:
	}
	return err
}

// Publish sends payload at QoS 1 and waits for the broker to acknowledge it.
func (c *Client) Publish(topic string, retained bool, payload []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect stops the client and closes the MQTT connection.
// Idempotent; after Disconnect, Connect returns ErrClientStopped.
func (c *Client) Disconnect() {
	c.stopOnce.Do(func() { close(c.stopCh) })
	if c.client != nil {
		c.client.Disconnect(250)
	}
	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
