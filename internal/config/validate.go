package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConvert(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConvert() error {
	if len(c.Convert.ManifestExtension) < 2 {
		return errors.New("convert.manifest_extension must name an extension such as .m3u8")
	}
	if strings.ContainsAny(c.Convert.ManifestExtension, `/\`) {
		return fmt.Errorf("convert.manifest_extension %q must not contain path separators", c.Convert.ManifestExtension)
	}
	if strings.ContainsAny(c.Convert.OutputContainer, `/\. `) {
		return fmt.Errorf("convert.output_container %q must be a bare extension such as mp4", c.Convert.OutputContainer)
	}
	switch c.Convert.OnConflict {
	case "ask", "overwrite", "skip", "cancel":
	default:
		return fmt.Errorf("convert.on_conflict must be one of ask, overwrite, skip, cancel (got %q)", c.Convert.OnConflict)
	}
	if c.Convert.MinFreeGiB < 0 {
		return errors.New("convert.min_free_gib must be >= 0")
	}
	return nil
}

func (c *Config) validateHistory() error {
	switch c.History.Backend {
	case HistoryBackendJSON, HistoryBackendSQLite:
	default:
		return fmt.Errorf("history.backend must be %q or %q (got %q)", HistoryBackendJSON, HistoryBackendSQLite, c.History.Backend)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		return errors.New("history.path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error (got %q)", c.Logging.Level)
	}
}
