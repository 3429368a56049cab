package testsupport

import (
	"context"
	"testing"

	"hlsmerge/internal/config"
	"hlsmerge/internal/history"
	"hlsmerge/internal/logging"
)

// MustOpenHistory opens the configured history store and registers cleanup.
func MustOpenHistory(t testing.TB, cfg *config.Config) history.Store {
	t.Helper()

	store, err := history.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustLoadHistory returns every persisted entry, most recent first.
func MustLoadHistory(t testing.TB, store history.Store) []history.Entry {
	t.Helper()

	entries, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("history.LoadAll: %v", err)
	}
	return entries
}
