package processors

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// Publisher is the subset of the MQTT client used by MQTTPublisher
type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
	IsConnected() bool
}

// BlockSummary is the MQTT payload for one block
type BlockSummary struct {
	DeviceID  string         `json:"device_id,omitempty"`
	Sequence  uint64         `json:"sequence"`
	Timestamp time.Time      `json:"timestamp"`
	Shape     acqcore.Shape  `json:"shape"`
	Channels  []ChannelStats `json:"channels"`
}

// MQTTPublisher publishes per-channel block summaries, at most one per interval
type MQTTPublisher struct {
	client   Publisher
	topic    string
	deviceID string
	interval time.Duration
	logger   logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	last     time.Time
	skipped  uint64
	messages uint64
}

// NewMQTTPublisher creates a publisher. An interval of zero publishes every block.
func NewMQTTPublisher(client Publisher, topic, deviceID string, interval time.Duration, log logger.Logger) (*MQTTPublisher, error) {
	if client == nil {
		return nil, errors.Newf("mqtt publisher requires a client").
			Component("acqcore.processors").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if topic == "" {
		return nil, errors.Newf("mqtt publisher requires a topic").
			Component("acqcore.processors").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &MQTTPublisher{
		client:   client,
		topic:    topic,
		deviceID: deviceID,
		interval: max(interval, 0),
		logger:   log,
		now:      time.Now,
	}, nil
}

// ID implements acqcore.Processor
func (p *MQTTPublisher) ID() string { return "mqtt" }

// Process implements acqcore.Processor
func (p *MQTTPublisher) Process(ctx context.Context, block *acqcore.SampleBlock) error {
	p.mu.Lock()
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) < p.interval {
		p.mu.Unlock()
		return nil
	}
	if !p.client.IsConnected() {
		p.skipped++
		p.mu.Unlock()
		return nil
	}
	p.last = now
	p.mu.Unlock()

	payload, err := json.Marshal(BlockSummary{
		DeviceID:  p.deviceID,
		Sequence:  block.Sequence,
		Timestamp: block.Timestamp,
		Shape:     block.Shape(),
		Channels:  computeChannelStats(block),
	})
	if err != nil {
		return errors.New(fmt.Errorf("failed to marshal block summary: %w", err)).
			Component("acqcore.processors").
			Category(errors.CategoryProcessing).
			Build()
	}

	if err := p.client.Publish(ctx, p.topic, string(payload)); err != nil {
		return errors.New(err).
			Component("acqcore.processors").
			Category(errors.CategoryMQTTPublish).
			Context("topic", p.topic).
			Build()
	}

	p.mu.Lock()
	p.messages++
	p.mu.Unlock()
	return nil
}

// Published returns the number of messages sent and the number skipped while disconnected
func (p *MQTTPublisher) Published() (sent, skipped uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages, p.skipped
}
