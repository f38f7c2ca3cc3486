package stores

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/calebres/aidesk/models"
)

// PostgresStore implements SessionStore for PostgreSQL databases
type PostgresStore struct {
	db  *gorm.DB
	dsn string
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(config *StoreConfig) (*PostgresStore, error) {
	if config.Type != "postgres" {
		return nil, fmt.Errorf("invalid store type for PostgreSQL store: %s", config.Type)
	}

	store := &PostgresStore{
		dsn: config.Connection,
	}

	if err := store.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	return store, nil
}

// NewPostgresStoreSimple creates a new PostgreSQL store with just a DSN
func NewPostgresStoreSimple(dsn string) (*PostgresStore, error) {
	config := NewStoreConfig("postgres", dsn)
	return NewPostgresStore(config)
}

// NewPostgresStoreDefault creates a PostgreSQL store from connection parameters
func NewPostgresStoreDefault(host, user, password, dbname string, port int) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		host, user, password, dbname, port)
	return NewPostgresStoreSimple(dsn)
}

// Connect establishes a connection to the PostgreSQL database
func (s *PostgresStore) Connect() error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	s.db = db

	// Auto-migrate the schema
	if err := s.db.AutoMigrate(&SessionRow{}, &MessageRow{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
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
func (s *PostgresStore) Ping() error {
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
func (s *PostgresStore) UpsertSession(session *models.Session) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return upsertSessionTx(s.db, session)
}

// GetSession loads a session and its ordered transcript
func (s *PostgresStore) GetSession(sessionID string) (*models.Session, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return getSessionFromDB(s.db, sessionID)
}

// ListSessions returns session metadata ordered by last-modified descending
func (s *PostgresStore) ListSessions() ([]models.SessionInfo, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return listSessionsFromDB(s.db)
}

// DeleteSession removes a session and cascades to its messages
func (s *PostgresStore) DeleteSession(sessionID string) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return deleteSessionFromDB(s.db, sessionID)
}

// ReplaceMessages swaps a session's transcript wholesale
func (s *PostgresStore) ReplaceMessages(sessionID string, messages []*models.Message) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return replaceMessagesInTx(tx, sessionID, messages)
	})
}
