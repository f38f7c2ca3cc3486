// Package models holds the domain types shared by the controllers, stores,
// and transports: messages, sessions, and generation parameters.
package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ErrMessageSealed is returned when writing to a message whose turn has
// already finished.
var ErrMessageSealed = errors.New("message is sealed")

// Attachment is one binary payload attached to a message. Data is the
// base64-encoded bytes, so attachments survive JSON round trips unchanged.
type Attachment struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

// Message is one transcript entry. While a generation is in flight the
// assistant placeholder stays writable; Seal makes it immutable once the turn
// reaches a terminal state.
type Message struct {
	ID          string       `json:"id"`
	Role        Role         `json:"role"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Pinned      bool         `json:"pinned,omitempty"`

	sealed bool
}

// NewMessage creates an unsealed message.
func NewMessage(role Role, text string, attachments []Attachment) *Message {
	return &Message{
		ID:          uuid.New().String(),
		Role:        role,
		Text:        text,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
}

// SetText replaces the message text. Fails once the message is sealed.
func (m *Message) SetText(text string) error {
	if m.sealed {
		return ErrMessageSealed
	}
	m.Text = text
	return nil
}

// Seal freezes the message.
func (m *Message) Seal() {
	m.sealed = true
}

// Sealed reports whether the message is frozen.
func (m *Message) Sealed() bool {
	return m.sealed
}

// Session is one conversation: an ordered transcript plus the parameter
// snapshot its turns run with.
type Session struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Messages  []*Message       `json:"messages"`
	Params    GenerationParams `json:"params"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSession creates an empty session with a fresh id.
func NewSession(params GenerationParams) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Params:    params,
		UpdatedAt: time.Now(),
	}
}

// Append adds a message to the end of the transcript.
func (s *Session) Append(m *Message) {
	s.Messages = append(s.Messages, m)
	s.UpdatedAt = time.Now()
}

// SessionInfo is the list-view summary of a persisted session.
type SessionInfo struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}
