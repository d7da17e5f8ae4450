package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/eegstream/eegstream-go/internal/errors"
)

var (
	// ErrSessionNotFound is wrapped when a session id has no row
	ErrSessionNotFound = errors.NewStd("session not found")

	errDatabaseNotOpen = errors.NewStd("database connection is not initialized")
)

// dbError creates a properly categorized database error with context
func dbError(err error, operation string, context ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// validationError creates a validation error
func validationError(message, field string, value any) error {
	return errors.Newf("%s", message).
		Component("datastore").
		Category(errors.CategoryValidation).
		Context("field", field).
		Context("value", fmt.Sprintf("%v", value)).
		Build()
}

// notFoundError maps gorm.ErrRecordNotFound to ErrSessionNotFound
func notFoundError(err error, sessionID string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.New(fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Context("session_id", sessionID).
			Build()
	}
	return dbError(err, "get_session", "session_id", sessionID)
}
