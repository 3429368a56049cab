package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hlsmerge/internal/config"
)

// ErrCorrupt reports a history collection that cannot be decoded.
var ErrCorrupt = errors.New("history is corrupt")

// Store is an append-ordered, most-recent-first history collection.
type Store interface {
	// Append inserts entry at the head and persists the collection.
	Append(ctx context.Context, entry Entry) error
	// LoadAll returns the collection, or an empty slice when none exists.
	LoadAll(ctx context.Context) ([]Entry, error)
	// Clear discards the persisted collection.
	Clear(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by cfg.History.
func Open(cfg *config.Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("history: config is required")
	}
	switch cfg.History.Backend {
	case config.HistoryBackendJSON:
		return NewJSONStore(cfg.History.Path, logger), nil
	case config.HistoryBackendSQLite:
		return OpenSQLite(cfg.History.Path)
	default:
		return nil, fmt.Errorf("history: unsupported backend %q", cfg.History.Backend)
	}
}
