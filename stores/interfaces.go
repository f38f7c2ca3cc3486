package stores

import (
	"errors"

	"gorm.io/gorm"

	"github.com/calebres/aidesk/models"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// SessionRow is the persisted form of a chat session.
type SessionRow struct {
	gorm.Model
	SessionID    string       `gorm:"uniqueIndex;not null"`
	Title        string       `gorm:"type:text"`
	MessageCount int          `gorm:"default:0"`
	ParamsJSON   string       `gorm:"type:json"`
	Messages     []MessageRow `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnDelete:CASCADE"`
}

// MessageRow is one persisted transcript entry. Sequence preserves transcript
// order; attachments travel as marshaled JSON alongside the text.
type MessageRow struct {
	gorm.Model
	MessageID       string `gorm:"index;not null"`
	SessionID       string `gorm:"index;not null"`
	Sequence        int    `gorm:"not null"`
	Role            string `gorm:"not null"` // "user", "assistant"
	Content         string `gorm:"type:text"`
	AttachmentsJSON string `gorm:"type:json"`
	Pinned          bool   `gorm:"default:false"`
	SentAt          int64  `gorm:"not null"` // unix nanos, monotonic per session
}

// SessionStore abstracts the local relational cache of chat history.
//
// UpsertSession writes the session row and replaces its messages wholesale in
// one transaction; a partially-written transcript is never observable.
type SessionStore interface {
	UpsertSession(session *models.Session) error
	GetSession(sessionID string) (*models.Session, error)
	ListSessions() ([]models.SessionInfo, error)
	DeleteSession(sessionID string) error
	ReplaceMessages(sessionID string, messages []*models.Message) error

	// Connection management
	Connect() error
	Close() error

	// Health check
	Ping() error
}

// StoreConfig holds configuration for database stores
type StoreConfig struct {
	Type       string            `json:"type"`       // "sqlite", "postgres"
	Connection string            `json:"connection"` // connection string
	Options    map[string]string `json:"options"`    // additional options
}

// NewStoreConfig creates a new store configuration
func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{
		Type:       storeType,
		Connection: connection,
		Options:    make(map[string]string),
	}
}

// WithOption adds an option to the store configuration
func (c *StoreConfig) WithOption(key, value string) *StoreConfig {
	c.Options[key] = value
	return c
}
