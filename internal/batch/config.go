package batch

import (
	"errors"
	"fmt"
	"log/slog"

	"hlsmerge/internal/config"
	"hlsmerge/internal/conflict"
	"hlsmerge/internal/deps"
	"hlsmerge/internal/history"
	"hlsmerge/internal/logging"
	"hlsmerge/internal/scanner"
	"hlsmerge/internal/transcode"
)

// NewFromConfig wires an orchestrator from configuration: the scanner and
// executor follow [convert] and [ffmpeg], the conflict policy follows
// convert.on_conflict, and batches hold the state-dir lock file.
func NewFromConfig(cfg *config.Config, store history.Store, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("batch: config is required")
	}
	if store == nil {
		return nil, errors.New("batch: history store is required")
	}
	policy, err := conflict.ParsePolicy(cfg.Convert.OnConflict)
	if err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	ffmpeg := deps.ResolveFFmpeg(cfg.FFmpeg.Binary, deps.ExecutableDir())
	if !ffmpeg.Available {
		// Still wired: the first unit records the failure and aborts.
		logging.NewComponentLogger(logger, "batch").Debug("ffmpeg unresolved",
			logging.String("binary", ffmpeg.Command),
			logging.String("detail", ffmpeg.Detail),
		)
	}

	return New(Deps{
		Scanner: scanner.New(cfg.Convert.ManifestExtension, cfg.OutputExtension(), logger),
		Transcoder: transcode.New(transcode.Options{
			Binary:               ffmpeg.Command,
			ProtocolWhitelist:    cfg.FFmpeg.ProtocolWhitelist,
			AudioBitstreamFilter: cfg.FFmpeg.AudioBitstreamFilter,
		}, logger),
		History:  store,
		Policy:   policy,
		LockPath: cfg.LockPath(),
		Logger:   logger,
	}), nil
}
