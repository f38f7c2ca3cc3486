package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calebres/aidesk/models"
)

// recordModuleWriter captures module output publishes.
type recordModuleWriter struct {
	mu      sync.Mutex
	outputs []ModuleOutput
	errors  []string
	done    int
}

func (w *recordModuleWriter) WriteOutput(out ModuleOutput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outputs = append(w.outputs, out)
	return nil
}

func (w *recordModuleWriter) WriteError(message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.errors = append(w.errors, message)
	return nil
}

func (w *recordModuleWriter) WriteDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done++
	return nil
}

func newModuleTestController(kind ModuleKind, tr *fakeTransport, creds *fakeCreds) *ModuleController {
	spec, ok := ModuleByKind(kind)
	if !ok {
		panic("unknown module kind in test: " + string(kind))
	}
	return NewModuleController(spec, tr, creds, models.DefaultParams(), nil)
}

func TestModuleSubmit_CodeGenStripsFencesOnEveryPublish(t *testing.T) {
	fragments := []string{"```go\n", "fmt.Println(", "42)\n", "```"}
	tr := &fakeTransport{fragments: fragments}
	ctrl := newModuleTestController(ModuleCodeGen, tr, &fakeCreds{secret: "k", ok: true})
	w := &recordModuleWriter{}

	if err := ctrl.Submit(context.Background(), "print 42", nil, w); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if len(w.outputs) == 0 {
		t.Fatal("Expected published outputs")
	}
	for i, out := range w.outputs {
		if strings.Contains(out.Text, "```") {
			t.Errorf("Publish %d still contains fence markers: %q", i, out.Text)
		}
	}

	final := w.outputs[len(w.outputs)-1]
	if final.Text != "fmt.Println(42)" {
		t.Errorf("Expected stripped final text %q, got %q", "fmt.Println(42)", final.Text)
	}
	if final.State != StateIdle {
		t.Errorf("Expected idle final state, got %s", final.State)
	}
}

func TestModuleSubmit_PromptStudioSplitsResultAndExplanation(t *testing.T) {
	fragments := []string{
		"Write a haiku about Go.",
		"\n---EXPLANATION---\n",
		"Added a concrete subject and form.",
	}
	tr := &fakeTransport{fragments: fragments}
	ctrl := newModuleTestController(ModulePromptStudio, tr, &fakeCreds{secret: "k", ok: true})
	w := &recordModuleWriter{}

	if err := ctrl.Submit(context.Background(), "write a poem", nil, w); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	// Before the separator arrives, everything is the result.
	first := w.outputs[0]
	if first.Text != "Write a haiku about Go." || first.Explanation != "" {
		t.Errorf("Unexpected first publish: %+v", first)
	}

	final := w.outputs[len(w.outputs)-1]
	if final.Text != "Write a haiku about Go." {
		t.Errorf("Expected result %q, got %q", "Write a haiku about Go.", final.Text)
	}
	if final.Explanation != "Added a concrete subject and form." {
		t.Errorf("Expected explanation, got %q", final.Explanation)
	}
}

func TestModuleSubmit_VisionRequiresAttachment(t *testing.T) {
	tr := &fakeTransport{}
	ctrl := newModuleTestController(ModuleVision, tr, &fakeCreds{secret: "k", ok: true})

	err := ctrl.Submit(context.Background(), "what is this?", nil, &recordModuleWriter{})
	if !errors.Is(err, ErrAttachmentRequired) {
		t.Fatalf("Expected ErrAttachmentRequired, got %v", err)
	}
	if tr.Calls() != 0 {
		t.Errorf("Expected zero transport calls, got %d", tr.Calls())
	}
}

func TestModuleSubmit_FailFastWithoutCredential(t *testing.T) {
	tr := &fakeTransport{fragments: []string{"nope"}}
	ctrl := newModuleTestController(ModuleCodeGen, tr, &fakeCreds{})
	w := &recordModuleWriter{}

	if err := ctrl.Submit(context.Background(), "anything", nil, w); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	if tr.Calls() != 0 {
		t.Errorf("Expected zero transport invocations, got %d", tr.Calls())
	}
	if len(w.outputs) != 1 || w.outputs[0].Text != NoCredentialMessage {
		t.Errorf("Expected the no-credential notice, got %+v", w.outputs)
	}
	if w.done != 1 {
		t.Errorf("Expected one done signal, got %d", w.done)
	}
}

func TestModuleSubmit_ErrorTruncatesRun(t *testing.T) {
	tr := &fakeTransport{fragments: []string{"partial "}, err: fmt.Errorf("network down")}
	ctrl := newModuleTestController(ModuleSecOps, tr, &fakeCreds{secret: "k", ok: true})
	w := &recordModuleWriter{}

	if err := ctrl.Submit(context.Background(), "check this config", nil, w); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	final := w.outputs[len(w.outputs)-1]
	if !strings.HasPrefix(final.Text, "partial") {
		t.Errorf("Partial output was not preserved: %q", final.Text)
	}
	if !strings.Contains(final.Text, "Error: network down") {
		t.Errorf("Expected appended error text, got %q", final.Text)
	}
	if final.Err != "network down" {
		t.Errorf("Expected error field, got %q", final.Err)
	}
	if ctrl.State() != StateIdle {
		t.Errorf("Expected idle state after error, got %s", ctrl.State())
	}
}

func TestModuleSubmit_BusyRejected(t *testing.T) {
	gate := make(chan struct{})
	tr := &fakeTransport{fragments: []string{"slow"}, gate: gate}
	ctrl := newModuleTestController(ModuleDataViz, tr, &fakeCreds{secret: "k", ok: true})

	done := make(chan error, 1)
	go func() {
		done <- ctrl.Submit(context.Background(), "chart this", nil, &recordModuleWriter{})
	}()

	waitForModuleState(t, ctrl, StateStreaming)

	if err := ctrl.Submit(context.Background(), "another chart", nil, &recordModuleWriter{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("Expected ErrBusy for overlapping submit, got %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("First submit returned error: %v", err)
	}
	if tr.Calls() != 1 {
		t.Errorf("Expected exactly 1 transport invocation, got %d", tr.Calls())
	}
}

func waitForModuleState(t *testing.T, ctrl *ModuleController, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ctrl.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Module controller never reached state %s", want)
}
