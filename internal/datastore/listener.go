package datastore

import (
	"context"
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
	"github.com/eegstream/eegstream-go/internal/logger"
)

// saveTimeout bounds one listener write so a locked database cannot stall
// the controller
const saveTimeout = 5 * time.Second

// SessionRecorder persists every session transition. It implements
// acqcore.SessionListener.
type SessionRecorder struct {
	store  Interface
	logger logger.Logger
}

// NewSessionRecorder returns a listener writing to store
func NewSessionRecorder(store Interface, log logger.Logger) *SessionRecorder {
	return &SessionRecorder{store: store, logger: log}
}

func (r *SessionRecorder) save(status acqcore.Status) {
	if status.SessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	session := SessionFromStatus(status)
	if err := r.store.Save(ctx, &session); err != nil {
		r.logger.Error("failed to persist session",
			logger.String("session_id", status.SessionID),
			logger.Error(err))
	}
}

// SessionStarted implements acqcore.SessionListener
func (r *SessionRecorder) SessionStarted(status acqcore.Status) { r.save(status) }

// SessionStopped implements acqcore.SessionListener
func (r *SessionRecorder) SessionStopped(status acqcore.Status) { r.save(status) }

// SessionFailed implements acqcore.SessionListener
func (r *SessionRecorder) SessionFailed(status acqcore.Status, _ error) {
	status.State = "failed"
	r.save(status)
}
