package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"hlsmerge/internal/logging"
)

const lockRetryDelay = 50 * time.Millisecond

// JSONStore keeps the history as one indented JSON array.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
}

// NewJSONStore returns a store backed by the file at path. The file and its
// parent directory are created on first append.
func NewJSONStore(path string, logger *slog.Logger) *JSONStore {
	return &JSONStore{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewComponentLogger(logger, "history"),
		now:    time.Now,
	}
}

// Append inserts entry at the head of the collection and rewrites the file.
// A file that cannot be decoded is moved aside and a new collection started.
func (s *JSONStore) Append(ctx context.Context, entry Entry) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	entries, err := s.read()
	if errors.Is(err, ErrCorrupt) {
		if quarantineErr := s.quarantine(err); quarantineErr != nil {
			return quarantineErr
		}
		entries, err = nil, nil
	}
	if err != nil {
		return err
	}

	entries = append([]Entry{entry}, entries...)
	if err := s.write(entries); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

// LoadAll returns the persisted collection, most recent first.
func (s *JSONStore) LoadAll(ctx context.Context) ([]Entry, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	entries, err := s.read()
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Clear removes the history file. A missing file is not an error.
func (s *JSONStore) Clear(ctx context.Context) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove history file: %w", err)
	}
	s.logger.Debug("cleared history", logging.String("history_path", s.path))
	return nil
}

// Close releases nothing; the lock is held only for the duration of a call.
func (s *JSONStore) Close() error { return nil }

func (s *JSONStore) acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// flock treats repeated locks from one handle as held, so goroutines
	// sharing the store serialize on mu first.
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("lock history file: %w", err)
	}
	if !locked {
		s.mu.Unlock()
		return fmt.Errorf("lock history file: %s is held by another process", s.lock.Path())
	}
	return nil
}

func (s *JSONStore) release() {
	if err := s.lock.Unlock(); err != nil {
		s.logger.Debug("unlock history file failed", logging.Error(err))
	}
	s.mu.Unlock()
}

func (s *JSONStore) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return entries, nil
}

func (s *JSONStore) write(entries []Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *JSONStore) quarantine(cause error) error {
	target := s.path + ".corrupt-" + strconv.FormatInt(s.now().Unix(), 10)
	if err := os.Rename(s.path, target); err != nil {
		return fmt.Errorf("move corrupt history aside: %w", err)
	}
	logging.WarnWithContext(s.logger, "history file was corrupt; starting a new one", "history_corrupt",
		logging.Error(cause),
		logging.String("backup_path", target),
		logging.String(logging.FieldErrorHint, "inspect the backup file to recover old entries"),
		logging.String(logging.FieldImpact, "earlier history is not listed"),
	)
	return nil
}
