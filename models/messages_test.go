package models

import (
	"errors"
	"testing"
)

func TestMessage_SetTextUntilSealed(t *testing.T) {
	msg := NewMessage(RoleAssistant, "", nil)

	if err := msg.SetText("partial"); err != nil {
		t.Fatalf("SetText on unsealed message failed: %v", err)
	}
	if msg.Text != "partial" {
		t.Errorf("Text = %q, want %q", msg.Text, "partial")
	}

	msg.Seal()
	if !msg.Sealed() {
		t.Fatal("Seal did not take effect")
	}

	if err := msg.SetText("late write"); !errors.Is(err, ErrMessageSealed) {
		t.Fatalf("Expected ErrMessageSealed, got %v", err)
	}
	if msg.Text != "partial" {
		t.Errorf("Sealed message text changed to %q", msg.Text)
	}
}

func TestSession_AppendKeepsOrderAndTouchesUpdatedAt(t *testing.T) {
	session := NewSession(DefaultParams())
	before := session.UpdatedAt

	first := NewMessage(RoleUser, "question", nil)
	second := NewMessage(RoleAssistant, "answer", nil)
	session.Append(first)
	session.Append(second)

	if len(session.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(session.Messages))
	}
	if session.Messages[0] != first || session.Messages[1] != second {
		t.Error("Append broke message order")
	}
	if session.UpdatedAt.Before(before) {
		t.Error("Append moved UpdatedAt backwards")
	}
}

func TestNewSession_FreshIDs(t *testing.T) {
	a := NewSession(DefaultParams())
	b := NewSession(DefaultParams())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected distinct non-empty session ids, got %q and %q", a.ID, b.ID)
	}
}
