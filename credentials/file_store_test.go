package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T, deviceSecret string) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir(), []byte(deviceSecret))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return store
}

func TestFileStore_SaveReadRoundTrip(t *testing.T) {
	store := newTestStore(t, "device-fingerprint")

	if err := store.Save("sk-test-secret"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "sk-test-secret" {
		t.Errorf("Read = %q, want %q", got, "sk-test-secret")
	}
}

func TestFileStore_ReadBeforeSave(t *testing.T) {
	store := newTestStore(t, "device-fingerprint")

	if _, err := store.Read(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if store.Exists() {
		t.Error("Exists reported a credential before any save")
	}
}

func TestFileStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t, "device-fingerprint")

	if err := store.Save("old"); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	if err := store.Save("new"); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got != "new" {
		t.Errorf("Read = %q, want %q", got, "new")
	}
}

func TestFileStore_ClearRemovesSecret(t *testing.T) {
	store := newTestStore(t, "device-fingerprint")

	if err := store.Save("secret"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !store.Exists() {
		t.Fatal("Exists should report the saved credential")
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Exists() {
		t.Error("Exists still true after Clear")
	}
	if _, err := store.Read(); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after Clear, got %v", err)
	}

	// Clearing an empty store is a no-op.
	if err := store.Clear(); err != nil {
		t.Errorf("Second Clear failed: %v", err)
	}
}

// The blob must be useless when copied to a machine with a different device
// secret.
func TestFileStore_OtherDeviceCannotDecrypt(t *testing.T) {
	dir := t.TempDir()

	original, err := NewFileStore(dir, []byte("device-a"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := original.Save("secret"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	other, err := NewFileStore(dir, []byte("device-b"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if _, err := other.Read(); err == nil {
		t.Fatal("Expected decryption failure with a different device secret")
	}
}

func TestFileStore_SecretNotStoredInPlaintext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, []byte("device-fingerprint"))
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.Save("sk-very-secret-value"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, credentialFile))
	if err != nil {
		t.Fatalf("Failed to read credential file: %v", err)
	}
	if string(raw) == "sk-very-secret-value" {
		t.Fatal("Credential stored in plaintext")
	}
}

func TestFileStore_RejectsEmptyDeviceSecret(t *testing.T) {
	if _, err := NewFileStore(t.TempDir(), nil); err == nil {
		t.Fatal("Expected error for empty device secret")
	}
}
