package transport

import (
	"context"

	"github.com/calebres/aidesk/models"
)

// Request carries everything one generation call needs: the active prompt,
// its attachments, the prior transcript, and the sampling snapshot.
type Request struct {
	Prompt      string
	Attachments []models.Attachment
	History     []*models.Message
	Params      models.GenerationParams
}

// Transport is one streaming generation call against the remote model.
// Fragments arrive on the first channel in delivery order; the stream ends
// with a close of both channels (completion) or a value on the error channel.
// Fragment granularity is whatever the service decides.
type Transport interface {
	Stream(ctx context.Context, credential string, req Request) (<-chan string, <-chan error)
}

// ModelInfo describes one available remote model.
type ModelInfo struct {
	Name             string `json:"name"`
	DisplayName      string `json:"display_name"`
	Description      string `json:"description,omitempty"`
	InputTokenLimit  int    `json:"input_token_limit"`
	OutputTokenLimit int    `json:"output_token_limit"`
}

// ModelLister fetches the remote model catalog (settings screen support).
type ModelLister interface {
	ListModels(ctx context.Context, credential string) ([]ModelInfo, error)
}
