// Package notification sends acquisition session alerts through shoutrrr
// services such as ntfy, Telegram or email.
package notification

import (
	"fmt"
	"strings"
	"sync"
	"time"

	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/errors"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const queueSize = 16

// Notification is one message to deliver
type Notification struct {
	Title   string
	Message string
}

// Metrics receives delivery outcomes
type Metrics interface {
	RecordDelivery(provider string, duration time.Duration, err error)
}

// Config configures a Notifier
type Config struct {
	Instance      string // instance name used in titles
	NotifyOnStart bool   // also notify on session start and stop
	Breaker       CircuitBreakerConfig
}

// Notifier turns session transitions into notifications and delivers them
// on a background worker so the controller never waits on the network. It
// implements acqcore.SessionListener.
type Notifier struct {
	cfg     Config
	sender  Sender
	breaker *CircuitBreaker
	logger  logger.Logger
	metrics Metrics

	queue     chan Notification
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewNotifier starts the delivery worker. metrics may be nil.
func NewNotifier(cfg Config, sender Sender, log logger.Logger, metrics Metrics) *Notifier {
	if cfg.Instance == "" {
		cfg.Instance = "eegstream"
	}
	n := &Notifier{
		cfg:     cfg,
		sender:  sender,
		breaker: NewCircuitBreaker(cfg.Breaker),
		logger:  log,
		metrics: metrics,
		queue:   make(chan Notification, queueSize),
	}
	n.wg.Add(1)
	go n.worker()
	return n
}

// Notify queues a notification without blocking. It reports false when the
// notifier is closed or the queue is full.
func (n *Notifier) Notify(msg Notification) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return false
	}
	select {
	case n.queue <- msg:
		return true
	default:
		n.logger.Warn("notification queue full, dropping notification",
			logger.String("title", msg.Title))
		return false
	}
}

// Close stops accepting notifications and waits for queued ones to be sent
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		n.mu.Lock()
		n.closed = true
		close(n.queue)
		n.mu.Unlock()
		n.wg.Wait()
	})
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for msg := range n.queue {
		if err := n.deliver(msg); err != nil {
			n.logger.Warn("notification delivery failed",
				logger.String("title", msg.Title),
				logger.Error(err))
		}
	}
}

func (n *Notifier) deliver(msg Notification) error {
	if err := n.breaker.Allow(); err != nil {
		return err
	}

	params := stypes.Params{}
	params.SetTitle(msg.Title)

	start := time.Now()
	var failures []error
	for _, err := range n.sender.Send(msg.Message, &params) {
		if err != nil {
			failures = append(failures, err)
		}
	}
	err := errors.Join(failures...)
	if n.metrics != nil {
		n.metrics.RecordDelivery("shoutrrr", time.Since(start), err)
	}

	if err != nil {
		n.breaker.RecordFailure()
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
	n.breaker.RecordSuccess()
	return nil
}

// SessionStarted implements acqcore.SessionListener
func (n *Notifier) SessionStarted(status acqcore.Status) {
	if !n.cfg.NotifyOnStart {
		return
	}
	n.Notify(Notification{
		Title: fmt.Sprintf("%s: acquisition started", n.cfg.Instance),
		Message: fmt.Sprintf("Session %s started on %s (%s, capacity %d)",
			status.SessionID, status.DeviceID, status.Shape, status.Capacity),
	})
}

// SessionStopped implements acqcore.SessionListener. Sessions that lost
// blocks or saw device errors are always reported.
func (n *Notifier) SessionStopped(status acqcore.Status) {
	if !n.cfg.NotifyOnStart && status.Dropped == 0 && status.DeviceErrors == 0 {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s on %s stopped: %d produced, %d consumed",
		status.SessionID, status.DeviceID, status.Produced, status.Consumed)
	if status.Dropped > 0 {
		fmt.Fprintf(&b, ", %d dropped", status.Dropped)
	}
	if status.DeviceErrors > 0 {
		fmt.Fprintf(&b, ", %d device errors", status.DeviceErrors)
	}

	n.Notify(Notification{
		Title:   fmt.Sprintf("%s: acquisition stopped", n.cfg.Instance),
		Message: b.String(),
	})
}

// SessionFailed implements acqcore.SessionListener
func (n *Notifier) SessionFailed(status acqcore.Status, err error) {
	n.Notify(Notification{
		Title:   fmt.Sprintf("%s: acquisition failed", n.cfg.Instance),
		Message: fmt.Sprintf("Session %s on %s failed to start: %v", status.SessionID, status.DeviceID, err),
	})
}
