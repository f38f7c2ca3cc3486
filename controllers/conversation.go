package controllers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/calebres/aidesk/credentials"
	"github.com/calebres/aidesk/models"
	"github.com/calebres/aidesk/stores"
	"github.com/calebres/aidesk/transport"
)

const titleMaxRunes = 48

// ConversationController owns the single authoritative transcript of one
// conversation and orchestrates at most one in-flight generation at a time.
type ConversationController struct {
	mu      sync.Mutex
	state   State
	session *models.Session
	cancel  context.CancelFunc

	transport transport.Transport
	creds     credentials.Store
	store     stores.SessionStore
	logger    *log.Logger
}

// NewConversationController creates a controller with a fresh session.
func NewConversationController(t transport.Transport, creds credentials.Store, store stores.SessionStore, params models.GenerationParams, logger *log.Logger) *ConversationController {
	if logger == nil {
		logger = log.Default()
	}
	return &ConversationController{
		state:     StateIdle,
		session:   models.NewSession(params.Clamp()),
		transport: t,
		creds:     creds,
		store:     store,
		logger:    logger,
	}
}

// State returns the controller's current phase.
func (c *ConversationController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the current session's id.
func (c *ConversationController) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.ID
}

// Transcript returns a value copy of the current transcript.
func (c *ConversationController) Transcript() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.session.Messages))
	for i, m := range c.session.Messages {
		out[i] = *m
	}
	return out
}

// SetParams attaches a new parameter snapshot to the current session.
func (c *ConversationController) SetParams(params models.GenerationParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.Params = params.Clamp()
}

// Params returns the session's current parameter snapshot.
func (c *ConversationController) Params() models.GenerationParams {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Params
}

// NewSession cancels any in-flight stream and starts a fresh conversation.
func (c *ConversationController) NewSession() *models.Session {
	c.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = models.NewSession(c.session.Params)
	return c.session
}

// LoadSession cancels any in-flight stream and replaces the transcript
// wholesale with a persisted session.
func (c *ConversationController) LoadSession(sessionID string) error {
	session, err := c.store.GetSession(sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	c.Cancel()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = session
	return nil
}

// Cancel aborts the in-flight stream, if any. The placeholder keeps whatever
// partial text already arrived.
func (c *ConversationController) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Submit runs one full turn: append the user message and an empty assistant
// placeholder, stream fragments into the placeholder, and persist the session
// when the stream completes. Blocks until the turn reaches a terminal state.
//
// A submit while another stream is in flight returns ErrBusy and touches
// nothing. A submit without a stored credential appends a synthetic
// assistant instruction and never contacts the transport.
func (c *ConversationController) Submit(ctx context.Context, text string, attachments []models.Attachment, w StreamWriter) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrBlankInput
	}

	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return ErrBusy
	}

	secret, err := c.creds.Read()
	if err != nil {
		// Fail fast: no remote call, no retry. The instruction goes into the
		// transcript so the user sees it where the answer would have been.
		notice := models.NewMessage(models.RoleAssistant, NoCredentialMessage, nil)
		notice.Seal()
		c.session.Append(notice)
		c.mu.Unlock()

		if werr := w.WriteUpdate(*notice); werr != nil {
			c.logger.Printf("Error writing no-credential notice: %v", werr)
		}
		return w.WriteDone()
	}

	// Snapshot the prior transcript before the new turn joins it.
	history := make([]*models.Message, len(c.session.Messages))
	copy(history, c.session.Messages)

	userMsg := models.NewMessage(models.RoleUser, text, attachments)
	userMsg.Seal()
	placeholder := models.NewMessage(models.RoleAssistant, "", nil)
	c.session.Append(userMsg)
	c.session.Append(placeholder)

	streamCtx, cancel := context.WithCancel(ctx)
	c.state = StateStreaming
	c.cancel = cancel
	params := c.session.Params
	c.mu.Unlock()

	if werr := w.WriteUpdate(*userMsg); werr != nil {
		c.logger.Printf("Error echoing user message: %v", werr)
	}

	req := transport.Request{
		Prompt:      text,
		Attachments: attachments,
		History:     history,
		Params:      params,
	}
	fragChan, errChan := c.transport.Stream(streamCtx, secret, req)

	defer func() {
		cancel()
		c.mu.Lock()
		c.state = StateIdle
		c.cancel = nil
		c.mu.Unlock()
	}()

	return c.consume(fragChan, errChan, placeholder, w)
}

// consume drains one stream into the placeholder message, publishing the
// full accumulator after every fragment.
func (c *ConversationController) consume(fragChan <-chan string, errChan <-chan error, placeholder *models.Message, w StreamWriter) error {
	var accum strings.Builder

	for {
		select {
		case frag, ok := <-fragChan:
			if !ok {
				fragChan = nil
				break
			}
			accum.WriteString(frag)
			update := c.updatePlaceholder(placeholder, accum.String(), false)
			if err := w.WriteUpdate(update); err != nil {
				// Client is gone; abandon the run but keep the partial text.
				c.logger.Printf("Error writing stream update: %v", err)
				c.updatePlaceholder(placeholder, accum.String(), true)
				return fmt.Errorf("failed to publish stream update: %w", err)
			}

		case streamErr, ok := <-errChan:
			if ok && streamErr != nil {
				c.finishWithError(placeholder, accum.String(), streamErr, w)
				return nil
			}
			if !ok {
				errChan = nil
			}
		}

		if fragChan == nil && errChan == nil {
			c.finishComplete(placeholder, accum.String(), w)
			return nil
		}
	}
}

// updatePlaceholder overwrites the placeholder text under the lock and
// returns a value copy for publishing.
func (c *ConversationController) updatePlaceholder(placeholder *models.Message, text string, seal bool) models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := placeholder.SetText(text); err != nil {
		c.logger.Printf("Warning: dropped write to sealed message %s", placeholder.ID)
	}
	if seal {
		placeholder.Seal()
	}
	return *placeholder
}

func (c *ConversationController) finishComplete(placeholder *models.Message, finalText string, w StreamWriter) {
	update := c.updatePlaceholder(placeholder, finalText, true)

	c.mu.Lock()
	if c.session.Title == "" {
		c.session.Title = deriveTitle(c.session)
	}
	session := c.session
	c.mu.Unlock()

	// Losing a cache write is not catastrophic; the in-memory transcript
	// stays authoritative.
	if err := c.store.UpsertSession(session); err != nil {
		c.logger.Printf("Error persisting session %s: %v", session.ID, err)
	}

	if err := w.WriteUpdate(update); err != nil {
		c.logger.Printf("Error writing final update: %v", err)
	}
	if err := w.WriteDone(); err != nil {
		c.logger.Printf("Error writing done signal: %v", err)
	}
}

func (c *ConversationController) finishWithError(placeholder *models.Message, partial string, streamErr error, w StreamWriter) {
	var text string
	switch {
	case errors.Is(streamErr, context.Canceled):
		text = partial + "\n\n(canceled)"
		if partial == "" {
			text = "(canceled)"
		}
	case partial == "":
		text = "Error: " + streamErr.Error()
	default:
		text = partial + "\n\nError: " + streamErr.Error()
	}

	update := c.updatePlaceholder(placeholder, text, true)

	if err := w.WriteUpdate(update); err != nil {
		c.logger.Printf("Error writing error update: %v", err)
	}
	if err := w.WriteError(streamErr.Error()); err != nil {
		c.logger.Printf("Error writing stream error: %v", err)
	}
	if err := w.WriteDone(); err != nil {
		c.logger.Printf("Error writing done signal: %v", err)
	}
}

// deriveTitle takes the first user message as the session title.
func deriveTitle(s *models.Session) string {
	for _, m := range s.Messages {
		if m.Role != models.RoleUser {
			continue
		}
		title := strings.TrimSpace(m.Text)
		runes := []rune(title)
		if len(runes) > titleMaxRunes {
			return string(runes[:titleMaxRunes-1]) + "…"
		}
		if title != "" {
			return title
		}
	}
	return "New conversation"
}
