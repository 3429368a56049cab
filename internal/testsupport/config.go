// Package testsupport holds helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"hlsmerge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config rooted in a unique temp directory per test.
// File logging is disabled and the JSON history lives in the state dir.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.History.Path = filepath.Join(cfgVal.Paths.StateDir, "conversion_history.json")
	cfgVal.Logging.File = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithSQLiteHistory switches the history backend to SQLite.
func WithSQLiteHistory() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Backend = config.HistoryBackendSQLite
		b.cfg.History.Path = filepath.Join(b.cfg.Paths.StateDir, "conversion_history.db")
	}
}

// WithOnConflict sets the default conflict policy.
func WithOnConflict(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Convert.OnConflict = policy
	}
}

// WithFFmpeg points the config at a specific ffmpeg binary.
func WithFFmpeg(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.FFmpeg.Binary = path
	}
}

// WithFakeFFmpeg installs a FakeFFmpeg under the config's base directory and
// points the config at it.
func WithFakeFFmpeg(fake **FakeFFmpeg, opts ...FakeOption) ConfigOption {
	return func(b *configBuilder) {
		f := NewFakeFFmpeg(b.t, filepath.Join(b.baseDir, "bin"), opts...)
		b.cfg.FFmpeg.Binary = f.Path
		if fake != nil {
			*fake = f
		}
	}
}
