package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"google.golang.org/genai"

	"github.com/calebres/aidesk/models"
	"github.com/calebres/aidesk/transport"
)

// Client implements transport.Transport on the official Gemini SDK. A fresh
// SDK client is created per call so the credential is always the one read at
// submission time.
type Client struct {
	Logger *log.Logger
}

// NewClient creates a Gemini transport.
func NewClient(logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{Logger: logger}
}

// Stream opens one streaming generation call. Fragments are forwarded in the
// order the service delivers them; the goroutine exits on completion, error,
// or context cancellation.
func (c *Client) Stream(ctx context.Context, credential string, req transport.Request) (<-chan string, <-chan error) {
	fragChan := make(chan string)
	errChan := make(chan error, 1)

	contents, config, err := buildRequest(req)
	if err != nil {
		errChan <- err
		close(errChan)
		close(fragChan)
		return fragChan, errChan
	}

	go func() {
		defer close(fragChan)
		defer close(errChan)

		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  credential,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			errChan <- fmt.Errorf("failed to create Gemini client: %w", err)
			return
		}

		model := req.Params.Model
		if model == "" {
			model = models.DefaultModel
		}

		for resp, err := range client.Models.GenerateContentStream(ctx, model, contents, config) {
			if err != nil {
				errChan <- fmt.Errorf("generation stream failed: %w", err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case fragChan <- text:
			case <-ctx.Done():
				errChan <- ctx.Err()
				return
			}
		}
	}()

	return fragChan, errChan
}

// buildRequest assembles the SDK contents from the transcript plus the active
// prompt, and maps the sampling snapshot onto the generation config.
func buildRequest(req transport.Request) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	var contents []*genai.Content

	for _, msg := range req.History {
		role := genai.RoleUser
		if msg.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		parts, err := buildParts(msg.Text, msg.Attachments)
		if err != nil {
			return nil, nil, err
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	promptParts, err := buildParts(req.Prompt, req.Attachments)
	if err != nil {
		return nil, nil, err
	}
	if len(promptParts) == 0 {
		return nil, nil, fmt.Errorf("request has no prompt content")
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: promptParts})

	params := req.Params.Clamp()
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(params.Temperature),
		TopP:            genai.Ptr(params.TopP),
		TopK:            genai.Ptr(float32(params.TopK)),
		MaxOutputTokens: params.MaxOutputTokens,
	}
	if params.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: params.SystemInstruction}},
		}
	}

	return contents, config, nil
}

func buildParts(text string, attachments []models.Attachment) ([]*genai.Part, error) {
	var parts []*genai.Part
	if text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	for _, att := range attachments {
		data, err := base64.StdEncoding.DecodeString(att.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode attachment payload: %w", err)
		}
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: att.MIMEType, Data: data},
		})
	}
	return parts, nil
}
