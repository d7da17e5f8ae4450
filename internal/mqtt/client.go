package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// client implements the Client interface.
type client struct {
	config          Config
	lastConnAttempt time.Time
	mu              sync.Mutex // serialises Connect and Disconnect
	logger          logger.Logger
	metrics         Metrics

	clientMu       sync.RWMutex
	internalClient mqtt.Client
}

// NewClient creates a new MQTT client with the provided configuration.
// metrics may be nil.
func NewClient(config Config, log logger.Logger, metrics Metrics) (Client, error) {
	if _, err := parseBroker(config.Broker); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Global().Module("mqtt")
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &client{
		config:  config,
		logger:  log.With(logger.String("broker", config.Broker)),
		metrics: metrics,
	}, nil
}

func parseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err == nil && (u.Scheme == "" || u.Hostname() == "") {
		err = fmt.Errorf("broker %q needs a scheme and host", broker)
	}
	if err != nil {
		return nil, errors.New(fmt.Errorf("invalid broker URL: %w", err)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return u, nil
}

// Connect attempts to establish a connection to the MQTT broker.
// It first resolves the broker's hostname and then attempts to connect.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := parseBroker(c.config.Broker)
	if err != nil {
		return err
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.New(fmt.Errorf("failed to resolve hostname %s: %w", host, err)).
				Component("mqtt").
				Category(errors.CategoryNetwork).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	internal := mqtt.NewClient(opts)
	c.clientMu.Lock()
	c.internalClient = internal
	c.clientMu.Unlock()

	token := internal.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return errors.Newf("connection timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.New(fmt.Errorf("connection error: %w", err)).
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	c.metrics.SetMQTTConnected(true)
	return nil
}

// Publish sends a message to the specified topic on the MQTT broker.
// It does not wait for a Connect in progress.
func (c *client) Publish(ctx context.Context, topic string, payload string) error {
	internal := c.current()
	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	start := time.Now()
	token := internal.Publish(topic, 0, false, payload)
	var err error
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		err = errors.Newf("publish timeout").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	} else if token.Error() != nil {
		err = errors.New(token.Error()).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	c.metrics.RecordMQTTPublish(len(payload), time.Since(start), err)
	return err
}

// waitToken waits for the token, the timeout or ctx, whichever comes first
func waitToken(ctx context.Context, token mqtt.Token, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	internal := c.current()
	return internal != nil && internal.IsConnected()
}

func (c *client) current() mqtt.Client {
	c.clientMu.RLock()
	defer c.clientMu.RUnlock()
	return c.internalClient
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if internal := c.current(); internal != nil && internal.IsConnected() {
		internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.metrics.SetMQTTConnected(false)
		c.logger.Info("disconnected from MQTT broker")
	}
}

func (c *client) onConnect(mqtt.Client) {
	c.logger.Info("connected to MQTT broker")
	c.metrics.SetMQTTConnected(true)
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.logger.Warn("connection to MQTT broker lost, reconnecting", logger.Error(err))
	c.metrics.SetMQTTConnected(false)
}

type noopMetrics struct{}

func (noopMetrics) SetMQTTConnected(bool)                        {}
func (noopMetrics) RecordMQTTPublish(int, time.Duration, error) {}
