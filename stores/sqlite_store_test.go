package stores

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calebres/aidesk/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStoreSimple(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("Failed to create SQLite store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sealedMessage(role models.Role, text string, attachments []models.Attachment) *models.Message {
	m := models.NewMessage(role, text, attachments)
	m.Seal()
	return m
}

func TestSQLiteStore_UpsertGetRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	session := models.NewSession(models.DefaultParams())
	session.Title = "Explain goroutines"
	session.Append(sealedMessage(models.RoleUser, "Explain goroutines", nil))
	session.Append(sealedMessage(models.RoleAssistant, "They are lightweight threads.", nil))

	if err := store.UpsertSession(session); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if loaded.Title != "Explain goroutines" {
		t.Errorf("Title = %q", loaded.Title)
	}
	if len(loaded.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(loaded.Messages))
	}
	if loaded.Messages[0].Role != models.RoleUser || loaded.Messages[0].Text != "Explain goroutines" {
		t.Errorf("Unexpected first message: %+v", loaded.Messages[0])
	}
	if loaded.Messages[1].Role != models.RoleAssistant {
		t.Errorf("Unexpected second message role: %s", loaded.Messages[1].Role)
	}
	for i, m := range loaded.Messages {
		if !m.Sealed() {
			t.Errorf("Loaded message %d is not sealed", i)
		}
	}
	if loaded.Params.Model != session.Params.Model {
		t.Errorf("Params model did not round trip: %q", loaded.Params.Model)
	}
}

func TestSQLiteStore_UpsertReplacesTranscript(t *testing.T) {
	store := newTestSQLiteStore(t)

	session := models.NewSession(models.DefaultParams())
	session.Append(sealedMessage(models.RoleUser, "first", nil))
	if err := store.UpsertSession(session); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}

	session.Append(sealedMessage(models.RoleAssistant, "reply", nil))
	session.Append(sealedMessage(models.RoleUser, "second", nil))
	if err := store.UpsertSession(session); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if len(loaded.Messages) != 3 {
		t.Fatalf("Expected 3 messages after replace, got %d", len(loaded.Messages))
	}
	if loaded.Messages[2].Text != "second" {
		t.Errorf("Transcript order broken: %+v", loaded.Messages)
	}
}

func TestSQLiteStore_AttachmentsRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)

	att := models.Attachment{MIMEType: "image/png", Data: "aGVsbG8="}
	session := models.NewSession(models.DefaultParams())
	session.Append(sealedMessage(models.RoleUser, "what is this?", []models.Attachment{att}))

	if err := store.UpsertSession(session); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	loaded, err := store.GetSession(session.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	got := loaded.Messages[0].Attachments
	if len(got) != 1 || got[0] != att {
		t.Errorf("Attachments did not round trip: %+v", got)
	}
}

func TestSQLiteStore_ListSessions(t *testing.T) {
	store := newTestSQLiteStore(t)

	older := models.NewSession(models.DefaultParams())
	older.Title = "older"
	older.Append(sealedMessage(models.RoleUser, "a", nil))
	if err := store.UpsertSession(older); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Keep the updated_at ordering unambiguous.
	time.Sleep(10 * time.Millisecond)

	newer := models.NewSession(models.DefaultParams())
	newer.Title = "newer"
	newer.Append(sealedMessage(models.RoleUser, "b", nil))
	newer.Append(sealedMessage(models.RoleAssistant, "c", nil))
	if err := store.UpsertSession(newer); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(infos))
	}
	if infos[0].Title != "newer" {
		t.Errorf("Expected most-recent first, got %q", infos[0].Title)
	}
	if infos[0].MessageCount != 2 || infos[1].MessageCount != 1 {
		t.Errorf("Unexpected message counts: %+v", infos)
	}
}

func TestSQLiteStore_DeleteSession(t *testing.T) {
	store := newTestSQLiteStore(t)

	session := models.NewSession(models.DefaultParams())
	session.Append(sealedMessage(models.RoleUser, "to delete", nil))
	if err := store.UpsertSession(session); err != nil {
		t.Fatalf("UpsertSession failed: %v", err)
	}

	if err := store.DeleteSession(session.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(session.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound after delete, got %v", err)
	}

	infos, err := store.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected empty session list, got %d", len(infos))
	}
}

func TestSQLiteStore_GetUnknownSession(t *testing.T) {
	store := newTestSQLiteStore(t)
	if _, err := store.GetSession("no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Expected ErrSessionNotFound, got %v", err)
	}
}
