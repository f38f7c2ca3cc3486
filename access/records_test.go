package access

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestRecordStore(t *testing.T) *GormRecordStore {
	t.Helper()
	store, err := NewGormRecordStore("sqlite", filepath.Join(t.TempDir(), "licenses.sqlite"))
	if err != nil {
		t.Fatalf("Failed to create record store: %v", err)
	}
	return store
}

func TestGormRecordStore_FetchRoundTrip(t *testing.T) {
	store := newTestRecordStore(t)
	ctx := context.Background()

	want := Record{Identity: "user@example.com", LicenseKey: "KEY-123", Paid: true}
	if err := store.Upsert(ctx, want); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	got, err := store.Fetch(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if *got != want {
		t.Errorf("Fetch = %+v, want %+v", *got, want)
	}
}

func TestGormRecordStore_FetchUnknownIdentity(t *testing.T) {
	store := newTestRecordStore(t)
	if _, err := store.Fetch(context.Background(), "nobody@example.com"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestGormRecordStore_BindDeviceOnceOnly(t *testing.T) {
	store := newTestRecordStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, Record{Identity: "user@example.com", LicenseKey: "KEY-123", Paid: true}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := store.BindDevice(ctx, "user@example.com", "device-1"); err != nil {
		t.Fatalf("First bind failed: %v", err)
	}

	// A second bind must not steal the binding.
	if err := store.BindDevice(ctx, "user@example.com", "device-2"); err == nil {
		t.Fatal("Expected second bind to fail")
	}

	got, err := store.Fetch(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.DeviceID != "device-1" {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, "device-1")
	}
}

func TestGormRecordStore_UpsertUpdatesExisting(t *testing.T) {
	store := newTestRecordStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, Record{Identity: "user@example.com", LicenseKey: "OLD", Paid: false}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, Record{Identity: "user@example.com", LicenseKey: "NEW", Paid: true}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	got, err := store.Fetch(ctx, "user@example.com")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if got.LicenseKey != "NEW" || !got.Paid {
		t.Errorf("Upsert did not update: %+v", got)
	}
}

func TestGormRecordStore_UnsupportedType(t *testing.T) {
	if _, err := NewGormRecordStore("mongodb", "whatever"); err == nil {
		t.Fatal("Expected error for unsupported store type")
	}
}
