// Package datastore persists acquisition session history.
package datastore

import (
	"context"
	"time"
)

// Interface is the session store used by the controller listener, the HTTP
// API and the sessions command.
type Interface interface {
	Open() error
	Close() error
	Save(ctx context.Context, session *Session) error
	Get(ctx context.Context, sessionID string) (*Session, error)
	List(ctx context.Context, limit int) ([]Session, error)
	Delete(ctx context.Context, sessionID string) error
}

// Metrics receives datastore operation outcomes
type Metrics interface {
	RecordDbOperation(operation, table string, duration time.Duration, err error)
}

type noopMetrics struct{}

func (noopMetrics) RecordDbOperation(string, string, time.Duration, error) {}
