package server

import (
	"github.com/gin-gonic/gin"

	"github.com/calebres/aidesk/controllers"
	"github.com/calebres/aidesk/models"
)

// sseWriter publishes controller state over Server-Sent Events. It satisfies
// both controllers.StreamWriter and controllers.ModuleWriter.
type sseWriter struct {
	c *gin.Context
}

func newSSEWriter(c *gin.Context) *sseWriter {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	return &sseWriter{c: c}
}

func (w *sseWriter) emit(event string, payload interface{}) error {
	w.c.SSEvent(event, payload)
	w.c.Writer.Flush()
	// gin's SSEvent has no error return; the request context reports a
	// disconnected client.
	return w.c.Request.Context().Err()
}

func (w *sseWriter) WriteUpdate(msg models.Message) error {
	return w.emit("update", msg)
}

func (w *sseWriter) WriteOutput(out controllers.ModuleOutput) error {
	return w.emit("output", out)
}

func (w *sseWriter) WriteError(message string) error {
	return w.emit("error", gin.H{"error": message})
}

func (w *sseWriter) WriteDone() error {
	return w.emit("done", gin.H{"type": "done"})
}
