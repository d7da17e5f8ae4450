package datastore

import (
	"time"

	"github.com/eegstream/eegstream-go/internal/acqcore"
)

// Session is one acquisition session as persisted in the sessions table
type Session struct {
	ID              uint   `gorm:"primaryKey"`
	SessionID       string `gorm:"uniqueIndex;size:36;not null"`
	DeviceID        string `gorm:"index;size:255"`
	State           string `gorm:"size:16"`
	Channels        int
	SamplesPerBlock int
	Capacity        int
	Produced        uint64
	Consumed        uint64
	Skipped         uint64
	Dropped         uint64
	DeviceErrors    uint64
	ProcessorErrors uint64
	Error           string `gorm:"size:1024"`
	StartedAt       *time.Time `gorm:"index"`
	StoppedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName sets the table name for gorm
func (Session) TableName() string { return "sessions" }

// SessionFromStatus maps a controller status onto a Session row
func SessionFromStatus(status acqcore.Status) Session {
	return Session{
		SessionID:       status.SessionID,
		DeviceID:        status.DeviceID,
		State:           status.State,
		Channels:        status.Shape.Channels,
		SamplesPerBlock: status.Shape.Samples,
		Capacity:        status.Capacity,
		Produced:        status.Produced,
		Consumed:        status.Consumed,
		Skipped:         status.Skipped,
		Dropped:         status.Dropped,
		DeviceErrors:    status.DeviceErrors,
		ProcessorErrors: status.ProcessorErrors,
		Error:           status.Error,
		StartedAt:       status.StartedAt,
		StoppedAt:       status.StoppedAt,
	}
}
