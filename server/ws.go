package server

import (
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/calebres/aidesk/controllers"
	"github.com/calebres/aidesk/models"
)

// wsWriter serializes all writes to one WebSocket connection.
type wsWriter struct {
	Conn   *websocket.Conn
	Logger *log.Logger
	mu     sync.Mutex
}

func (w *wsWriter) writeJSON(v interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.Conn.WriteJSON(v)
}

func (w *wsWriter) WriteUpdate(msg models.Message) error {
	return w.writeJSON(gin.H{"type": "update", "message": msg})
}

func (w *wsWriter) WriteError(message string) error {
	return w.writeJSON(gin.H{"type": "error", "error": message})
}

func (w *wsWriter) WriteDone() error {
	return w.writeJSON(gin.H{"type": "done"})
}

// wsSubmit is one inbound chat request over the socket.
type wsSubmit struct {
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// handleChatWS runs the conversation over a WebSocket: one submit at a time,
// read in a loop until the client hangs up. Closing the socket cancels any
// in-flight stream.
func (s *Server) handleChatWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer s.wb.Conversation.Cancel()

	writer := &wsWriter{Conn: conn, Logger: s.logger}

	for {
		var req wsSubmit
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Printf("WebSocket read error: %v", err)
			}
			return
		}

		err := s.wb.Conversation.Submit(c.Request.Context(), req.Text, req.Attachments, writer)
		switch {
		case err == nil:
		case errors.Is(err, controllers.ErrBusy):
			// Busy submits are a no-op; tell this client why nothing happened.
			if werr := writer.WriteError(err.Error()); werr != nil {
				return
			}
		case errors.Is(err, controllers.ErrBlankInput):
			if werr := writer.WriteError(err.Error()); werr != nil {
				return
			}
		default:
			s.logger.Printf("WebSocket submit failed: %v", err)
			return
		}
	}
}

func newUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}
