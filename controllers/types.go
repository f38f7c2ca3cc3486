package controllers

import (
	"errors"

	"github.com/calebres/aidesk/models"
)

// State is the controller's observable phase. There are only two: a
// controller is either idle or it has exactly one stream in flight.
type State string

const (
	StateIdle      State = "idle"
	StateStreaming State = "streaming"
)

var (
	// ErrBlankInput rejects empty or whitespace-only submissions locally,
	// before any remote call.
	ErrBlankInput = errors.New("input must not be blank")

	// ErrBusy rejects a submit while a stream is in flight. The transcript
	// is untouched; callers treat it as a no-op.
	ErrBusy = errors.New("a request is already streaming")

	// ErrAttachmentRequired rejects module submissions that need a payload
	// (vision, document analysis) but got none.
	ErrAttachmentRequired = errors.New("this module requires an attachment")
)

// NoCredentialMessage is the synthetic assistant reply appended when submit
// runs without a stored API key. The transport is never contacted.
const NoCredentialMessage = "No API key is configured. Add your Gemini API key in Settings, then resend your message."

// StreamWriter receives conversation state as it changes: the full current
// text of the updated message (full-replace semantics), terminal errors, and
// the completion signal.
type StreamWriter interface {
	WriteUpdate(msg models.Message) error
	WriteError(message string) error
	WriteDone() error
}

// ModuleOutput is the published state of a single-shot module run.
type ModuleOutput struct {
	State       State  `json:"state"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
	Err         string `json:"error,omitempty"`
}

// ModuleWriter receives module output republished on every fragment.
type ModuleWriter interface {
	WriteOutput(out ModuleOutput) error
	WriteError(message string) error
	WriteDone() error
}
