package testsupport

import (
	"context"
	"testing"

	"templatefiller/internal/config"
	"templatefiller/internal/records"
)

// MustOpenRecords opens a records.Store for tests and registers cleanup.
func MustOpenRecords(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a received session for tests using the provided store.
func NewSession(t testing.TB, store *records.Store, id, mode string) *records.Session {
	t.Helper()

	session, err := store.CreateSession(context.Background(), id, mode, "upload.zip")
	if err != nil {
		t.Fatalf("store.CreateSession: %v", err)
	}
	return session
}
