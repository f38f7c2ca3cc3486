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
	"github.com/calebres/aidesk/transport"
)

// ModuleController runs single-shot requests for one tool module: no
// persisted transcript, empty history, fixed system instruction, and the
// module's post-processing rule applied to the accumulator on every publish.
type ModuleController struct {
	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	output ModuleOutput

	spec      ModuleSpec
	params    models.GenerationParams
	transport transport.Transport
	creds     credentials.Store
	logger    *log.Logger
}

// NewModuleController creates a controller for one module spec.
func NewModuleController(spec ModuleSpec, t transport.Transport, creds credentials.Store, params models.GenerationParams, logger *log.Logger) *ModuleController {
	if logger == nil {
		logger = log.Default()
	}
	return &ModuleController{
		state:     StateIdle,
		spec:      spec,
		params:    params.Clamp().WithSystem(spec.SystemInstruction),
		transport: t,
		creds:     creds,
		logger:    logger,
	}
}

// Kind returns the module this controller serves.
func (m *ModuleController) Kind() ModuleKind {
	return m.spec.Kind
}

// State returns the controller's current phase.
func (m *ModuleController) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Output returns the last published output.
func (m *ModuleController) Output() ModuleOutput {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output
}

// Cancel aborts the in-flight run, if any.
func (m *ModuleController) Cancel() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Submit runs one single-shot request. Same failure semantics as the
// conversation controller: busy submits are rejected, a missing credential
// fails fast without touching the transport, a transport error truncates the
// run with the error text appended.
func (m *ModuleController) Submit(ctx context.Context, input string, attachments []models.Attachment, w ModuleWriter) error {
	input = strings.TrimSpace(input)
	if input == "" && len(attachments) == 0 {
		return ErrBlankInput
	}
	if m.spec.RequireAttachment && len(attachments) == 0 {
		return ErrAttachmentRequired
	}

	m.mu.Lock()
	if m.state == StateStreaming {
		m.mu.Unlock()
		return ErrBusy
	}

	secret, err := m.creds.Read()
	if err != nil {
		out := ModuleOutput{State: StateIdle, Text: NoCredentialMessage}
		m.output = out
		m.mu.Unlock()

		if werr := w.WriteOutput(out); werr != nil {
			m.logger.Printf("Error writing no-credential output: %v", werr)
		}
		return w.WriteDone()
	}

	streamCtx, cancel := context.WithCancel(ctx)
	m.state = StateStreaming
	m.cancel = cancel
	m.output = ModuleOutput{State: StateStreaming}
	params := m.params
	m.mu.Unlock()

	req := transport.Request{
		Prompt:      input,
		Attachments: attachments,
		Params:      params,
	}
	fragChan, errChan := m.transport.Stream(streamCtx, secret, req)

	defer func() {
		cancel()
		m.mu.Lock()
		m.state = StateIdle
		m.cancel = nil
		m.mu.Unlock()
	}()

	return m.consume(fragChan, errChan, w)
}

func (m *ModuleController) consume(fragChan <-chan string, errChan <-chan error, w ModuleWriter) error {
	var accum strings.Builder

	for {
		select {
		case frag, ok := <-fragChan:
			if !ok {
				fragChan = nil
				break
			}
			accum.WriteString(frag)
			out := m.publish(accum.String(), StateStreaming, "")
			if err := w.WriteOutput(out); err != nil {
				m.logger.Printf("Error writing module output: %v", err)
				return fmt.Errorf("failed to publish module output: %w", err)
			}

		case streamErr, ok := <-errChan:
			if ok && streamErr != nil {
				m.finishWithError(accum.String(), streamErr, w)
				return nil
			}
			if !ok {
				errChan = nil
			}
		}

		if fragChan == nil && errChan == nil {
			out := m.publish(accum.String(), StateIdle, "")
			if err := w.WriteOutput(out); err != nil {
				m.logger.Printf("Error writing final module output: %v", err)
			}
			if err := w.WriteDone(); err != nil {
				m.logger.Printf("Error writing done signal: %v", err)
			}
			return nil
		}
	}
}

// publish post-processes the accumulator and stores the published output.
func (m *ModuleController) publish(accumulated string, state State, errText string) ModuleOutput {
	result, explanation := m.spec.PostProcess(accumulated)
	out := ModuleOutput{
		State:       state,
		Text:        result,
		Explanation: explanation,
		Err:         errText,
	}
	m.mu.Lock()
	m.output = out
	m.mu.Unlock()
	return out
}

func (m *ModuleController) finishWithError(partial string, streamErr error, w ModuleWriter) {
	result, explanation := m.spec.PostProcess(partial)

	var text string
	switch {
	case errors.Is(streamErr, context.Canceled):
		text = result + "\n\n(canceled)"
		if result == "" {
			text = "(canceled)"
		}
	case result == "":
		text = "Error: " + streamErr.Error()
	default:
		text = result + "\n\nError: " + streamErr.Error()
	}

	out := ModuleOutput{
		State:       StateIdle,
		Text:        text,
		Explanation: explanation,
		Err:         streamErr.Error(),
	}
	m.mu.Lock()
	m.output = out
	m.mu.Unlock()

	if err := w.WriteOutput(out); err != nil {
		m.logger.Printf("Error writing module error output: %v", err)
	}
	if err := w.WriteError(streamErr.Error()); err != nil {
		m.logger.Printf("Error writing module stream error: %v", err)
	}
	if err := w.WriteDone(); err != nil {
		m.logger.Printf("Error writing done signal: %v", err)
	}
}
