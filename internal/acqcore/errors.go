package acqcore

import (
	"context"
	"fmt"

	"github.com/eegstream/eegstream-go/internal/errors"
)

// Sentinel errors. Returned errors wrap these, so callers match with errors.Is.
var (
	// ErrBufferClosed is the normal termination signal for Push and Pop after
	// Close. It is returned bare, never through the builder, so shutdown does
	// not reach telemetry.
	ErrBufferClosed = errors.NewStd("sample buffer closed")

	// ErrInvalidConfiguration is wrapped by construction and configuration errors
	ErrInvalidConfiguration = errors.NewStd("invalid acquisition configuration")

	// ErrShapeMismatch is wrapped when a block's shape differs from the expected shape
	ErrShapeMismatch = errors.NewStd("sample block shape mismatch")

	// ErrDevice is wrapped by device open and read failures
	ErrDevice = errors.NewStd("acquisition device error")

	// ErrDeviceExhausted is returned by devices with a finite source once all data was read
	ErrDeviceExhausted = errors.NewStd("acquisition device exhausted")

	// ErrAlreadyRunning is wrapped when Start is called on a running component
	ErrAlreadyRunning = errors.NewStd("already running")

	// ErrNotRunning is wrapped when an operation needs a running component
	ErrNotRunning = errors.NewStd("not running")
)

func newConfigError(msg string, kv ...any) error {
	b := errors.New(fmt.Errorf("%w: %s", ErrInvalidConfiguration, msg)).
		Component(ComponentAcqCore).
		Category(errors.CategoryConfiguration)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			b = b.Context(key, kv[i+1])
		}
	}
	return b.Build()
}

func newShapeMismatchError(operation string, want, got Shape) error {
	return errors.New(fmt.Errorf("%w: expected %s, got %s", ErrShapeMismatch, want, got)).
		Component(ComponentAcqCore).
		Category(errors.CategoryValidation).
		Context("operation", operation).
		Context("expected_shape", want.String()).
		Context("actual_shape", got.String()).
		Build()
}

func newStateError(component string, sentinel error) error {
	return errors.New(fmt.Errorf("%s: %w", component, sentinel)).
		Component(ComponentAcqCore).
		Category(errors.CategoryState).
		Context("resource", component).
		Build()
}

// NewDeviceError wraps a device failure so it matches ErrDevice.
// Device implementations use it for open and read failures.
func NewDeviceError(deviceID, operation string, err error) error {
	if errors.Is(err, ErrDevice) {
		return err
	}
	return errors.New(fmt.Errorf("%w: %s %s: %w", ErrDevice, deviceID, operation, err)).
		Component(ComponentAcqCore).
		Category(errors.CategoryDevice).
		Context("device_id", deviceID).
		Context("operation", operation).
		Build()
}

// waitError converts a context error from a bounded wait into an enhanced error
func waitError(operation string, err error) error {
	category := errors.CategoryCancellation
	if errors.Is(err, context.DeadlineExceeded) {
		category = errors.CategoryTimeout
	}
	return errors.New(fmt.Errorf("%s: %w", operation, err)).
		Component(ComponentAcqCore).
		Category(category).
		Context("operation", operation).
		Build()
}
