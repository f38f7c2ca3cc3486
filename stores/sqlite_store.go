package stores

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/calebres/aidesk/models"
)

// SQLiteStore implements SessionStore for SQLite databases
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{
		path: config.Connection,
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	return store, nil
}

// NewSQLiteStoreSimple creates a new SQLite store with just a file path
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	config := NewStoreConfig("sqlite", dbPath)
	return NewSQLiteStore(config)
}

// Connect establishes a connection to the SQLite database
func (s *SQLiteStore) Connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&SessionRow{}, &MessageRow{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Ping()
}

// UpsertSession writes the session row and its full transcript atomically
func (s *SQLiteStore) UpsertSession(session *models.Session) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return upsertSessionTx(s.db, session)
}

// GetSession loads a session and its ordered transcript
func (s *SQLiteStore) GetSession(sessionID string) (*models.Session, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return getSessionFromDB(s.db, sessionID)
}

// ListSessions returns session metadata ordered by last-modified descending
func (s *SQLiteStore) ListSessions() ([]models.SessionInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return listSessionsFromDB(s.db)
}

// DeleteSession removes a session and cascades to its messages
func (s *SQLiteStore) DeleteSession(sessionID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return deleteSessionFromDB(s.db, sessionID)
}

// ReplaceMessages swaps a session's transcript wholesale
func (s *SQLiteStore) ReplaceMessages(sessionID string, messages []*models.Message) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return replaceMessagesInTx(tx, sessionID, messages)
	})
}
