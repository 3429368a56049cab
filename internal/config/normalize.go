package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFFmpeg(); err != nil {
		return err
	}
	c.normalizeConvert()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(strings.TrimSpace(c.Paths.StateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFFmpeg() error {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		if value, ok := os.LookupEnv("HLSMERGE_FFMPEG"); ok {
			c.FFmpeg.Binary = strings.TrimSpace(value)
		}
	}
	// Bare command names stay as-is so they resolve through PATH.
	if strings.ContainsAny(c.FFmpeg.Binary, `/\`) || strings.HasPrefix(c.FFmpeg.Binary, "~") {
		expanded, err := expandPath(c.FFmpeg.Binary)
		if err != nil {
			return fmt.Errorf("ffmpeg.binary: %w", err)
		}
		c.FFmpeg.Binary = expanded
	}
	c.FFmpeg.ProtocolWhitelist = strings.TrimSpace(c.FFmpeg.ProtocolWhitelist)
	if c.FFmpeg.ProtocolWhitelist == "" {
		c.FFmpeg.ProtocolWhitelist = defaultProtocolWhitelist
	}
	c.FFmpeg.AudioBitstreamFilter = strings.TrimSpace(c.FFmpeg.AudioBitstreamFilter)
	if c.FFmpeg.AudioBitstreamFilter == "" {
		c.FFmpeg.AudioBitstreamFilter = defaultAudioBitstreamFilter
	}
	return nil
}

func (c *Config) normalizeConvert() {
	ext := strings.TrimSpace(c.Convert.ManifestExtension)
	if ext == "" {
		ext = defaultManifestExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.Convert.ManifestExtension = ext

	container := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Convert.OutputContainer), "."))
	if container == "" {
		container = defaultOutputContainer
	}
	c.Convert.OutputContainer = container

	c.Convert.OnConflict = strings.ToLower(strings.TrimSpace(c.Convert.OnConflict))
	if c.Convert.OnConflict == "" {
		c.Convert.OnConflict = defaultOnConflict
	}
}

func (c *Config) normalizeHistory() error {
	c.History.Backend = strings.ToLower(strings.TrimSpace(c.History.Backend))
	if c.History.Backend == "" {
		c.History.Backend = defaultHistoryBackend
	}
	c.History.Path = strings.TrimSpace(c.History.Path)
	if c.History.Path == "" {
		name := defaultJSONHistoryFile
		if c.History.Backend == HistoryBackendSQLite {
			name = defaultSQLiteHistoryFile
		}
		c.History.Path = filepath.Join(c.Paths.StateDir, name)
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
