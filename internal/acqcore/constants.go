package acqcore

import "time"

// ComponentAcqCore identifies errors raised by this package
const ComponentAcqCore = "acqcore"

const (
	// DefaultCapacity is the number of blocks the buffer holds when unset
	DefaultCapacity = 64

	// DefaultDrainTimeout bounds how long Stop waits for queued blocks
	DefaultDrainTimeout = 2 * time.Second

	// MaxChannels, MaxSamplesPerBlock and MaxCapacity bound each buffer dimension
	MaxChannels        = 4096
	MaxSamplesPerBlock = 1 << 20
	MaxCapacity        = 1 << 16

	// MaxBufferSamples bounds capacity x channels x samples, 1 GiB of float64
	MaxBufferSamples = 1 << 27

	// errorLogInterval rate limits repeated per-block error logs
	errorLogInterval = 5 * time.Second

	// errorLogBurst allows a few errors through before rate limiting kicks in
	errorLogBurst = 3
)
