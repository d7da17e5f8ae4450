package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/eegstream/eegstream-go/internal/diskspace"
	"github.com/eegstream/eegstream-go/internal/logger"
)

const sessionsTable = "sessions"

// slowQueryThreshold is reported by the gorm logger adapter
const slowQueryThreshold = 200 * time.Millisecond

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DB      *gorm.DB
	path    string
	minFree uint64
	logger  logger.Logger
	metrics Metrics
}

// StoreOption configures a SQLiteStore
type StoreOption func(*SQLiteStore)

// WithLogger sets the logger used for the store and gorm
func WithLogger(l logger.Logger) StoreOption {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records operation outcomes
func WithMetrics(m Metrics) StoreOption {
	return func(s *SQLiteStore) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithMinFreeSpace makes Open fail when the database directory has fewer
// than bytes available. Zero disables the check.
func WithMinFreeSpace(bytes uint64) StoreOption {
	return func(s *SQLiteStore) {
		s.minFree = bytes
	}
}

// NewSQLiteStore returns a store for the database at path. Open must be
// called before use.
func NewSQLiteStore(path string, opts ...StoreOption) *SQLiteStore {
	s := &SQLiteStore{
		path:    path,
		logger:  logger.Global().Module("datastore"),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open sets up the SQLite database connection and migrates the schema
func (s *SQLiteStore) Open() error {
	if s.path == "" {
		return validationError("sqlite path must not be empty", "path", s.path)
	}
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return dbError(err, "create_directory", "path", dir)
		}
	}
	if err := diskspace.Check(dir, s.minFree); err != nil {
		return err
	}

	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(s.logger, slowQueryThreshold),
	})
	if err != nil {
		return dbError(err, "open", "path", s.path)
	}

	if err := db.AutoMigrate(&Session{}); err != nil {
		return dbError(err, "auto_migrate", "path", s.path)
	}

	s.DB = db
	s.logger.Info("session database opened", logger.String("path", s.path))
	return nil
}

// Close closes the underlying connection
func (s *SQLiteStore) Close() error {
	if s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return dbError(err, "close")
	}
	s.DB = nil
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close")
	}
	return nil
}

func (s *SQLiteStore) db(ctx context.Context, operation string) (*gorm.DB, error) {
	if s.DB == nil {
		return nil, dbError(errDatabaseNotOpen, operation)
	}
	return s.DB.WithContext(ctx), nil
}

// Save inserts the session or updates the row with the same session id
func (s *SQLiteStore) Save(ctx context.Context, session *Session) (err error) {
	defer s.observe("save", time.Now(), &err)

	if session.SessionID == "" {
		return validationError("session id must not be empty", "session_id", session.SessionID)
	}
	db, err := s.db(ctx, "save_session")
	if err != nil {
		return err
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		UpdateAll: true,
	}).Create(session)
	if result.Error != nil {
		return dbError(result.Error, "save_session", "session_id", session.SessionID)
	}
	return nil
}

// Get returns the session with the given id
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (_ *Session, err error) {
	defer s.observe("get", time.Now(), &err)

	db, err := s.db(ctx, "get_session")
	if err != nil {
		return nil, err
	}

	var session Session
	if err := db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		return nil, notFoundError(err, sessionID)
	}
	return &session, nil
}

// List returns the most recent sessions first. A limit below 1 returns all.
func (s *SQLiteStore) List(ctx context.Context, limit int) (_ []Session, err error) {
	defer s.observe("list", time.Now(), &err)

	db, err := s.db(ctx, "list_sessions")
	if err != nil {
		return nil, err
	}

	query := db.Order("started_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []Session
	if err := query.Find(&sessions).Error; err != nil {
		return nil, dbError(err, "list_sessions")
	}
	return sessions, nil
}

// Delete removes a session
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	db, err := s.db(ctx, "delete_session")
	if err != nil {
		return err
	}

	result := db.Where("session_id = ?", sessionID).Delete(&Session{})
	if result.Error != nil {
		return dbError(result.Error, "delete_session", "session_id", sessionID)
	}
	if result.RowsAffected == 0 {
		return notFoundError(gorm.ErrRecordNotFound, sessionID)
	}
	return nil
}

func (s *SQLiteStore) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordDbOperation(operation, sessionsTable, time.Since(start), *err)
}
