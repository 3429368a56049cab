package config

const (
	defaultConfigPath           = "~/.config/hlsmerge/config.toml"
	defaultStateDir             = "~/.local/share/hlsmerge"
	defaultProtocolWhitelist    = "file,http,https,tcp,tls,crypto,pipe"
	defaultAudioBitstreamFilter = "aac_adtstoasc"
	defaultManifestExtension    = ".m3u8"
	defaultOutputContainer      = "mp4"
	defaultOnConflict           = "ask"
	defaultHistoryBackend       = HistoryBackendJSON
	defaultJSONHistoryFile      = "conversion_history.json"
	defaultSQLiteHistoryFile    = "conversion_history.db"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// History backends.
const (
	HistoryBackendJSON   = "json"
	HistoryBackendSQLite = "sqlite"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		FFmpeg: FFmpeg{
			ProtocolWhitelist:    defaultProtocolWhitelist,
			AudioBitstreamFilter: defaultAudioBitstreamFilter,
		},
		Convert: Convert{
			ManifestExtension: defaultManifestExtension,
			OutputContainer:   defaultOutputContainer,
			OnConflict:        defaultOnConflict,
		},
		History: History{
			Backend: defaultHistoryBackend,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
			File:   true,
		},
	}
}
