package config

const (
	defaultConfigPath              = "~/.config/coursecast/config.toml"
	defaultDataDir                 = "~/.local/share/coursecast"
	defaultSourceDir               = "~/.local/share/coursecast/uploads"
	defaultStorageDir              = "~/.local/share/coursecast/storage"
	defaultLogDir                  = "~/.local/share/coursecast/logs"
	defaultTranscoderBinary        = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultSegmentSeconds          = 10
	defaultTranscodeTimeoutSeconds = 6 * 60 * 60
	defaultVideoCodec              = "libx264"
	defaultAudioCodec              = "aac"
	defaultPreset                  = "veryfast"
	defaultCapabilityCacheTTL      = 3600
	defaultWorkerPollInterval      = 5
	defaultHeartbeatInterval       = 15
	defaultHeartbeatTimeout        = 120
	defaultBulkLimit               = 50
	defaultAPIBind                 = "127.0.0.1:7610"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
)

// defaultSearchPaths lists install locations checked after PATH.
var defaultSearchPaths = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/opt/ffmpeg/bin/ffmpeg",
	"/snap/bin/ffmpeg",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			SourceDir:  defaultSourceDir,
			StorageDir: defaultStorageDir,
			LogDir:     defaultLogDir,
		},
		Transcoder: Transcoder{
			Binary:          defaultTranscoderBinary,
			SearchPaths:     append([]string(nil), defaultSearchPaths...),
			FFprobeBinary:   defaultFFprobeBinary,
			AllowSubprocess: true,
			SegmentSeconds:  defaultSegmentSeconds,
			Timeout:         defaultTranscodeTimeoutSeconds,
			VideoCodec:      defaultVideoCodec,
			AudioCodec:      defaultAudioCodec,
			Preset:          defaultPreset,
		},
		Capability: Capability{
			CacheTTL: defaultCapabilityCacheTTL,
		},
		Workers: Workers{
			Count:             0,
			PollInterval:      defaultWorkerPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Bulk: Bulk{
			DefaultLimit: defaultBulkLimit,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
