package config

import (
	"squash/internal/bitrate"
	"squash/internal/preset"
)

const (
	defaultDataDir                 = "~/.local/share/squash"
	defaultLogDir                  = "~/.local/share/squash/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultMaxParallelJobs         = 2
	maxParallelJobsLimit           = 8
	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultFallbackDurationSeconds = 3600
	defaultProbeTimeoutSeconds     = 30
	defaultOutputSuffix            = "-squashed"
	defaultNotifyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Engine: Engine{
			MaxParallelJobs:         defaultMaxParallelJobs,
			FFmpegBinary:            defaultFFmpegBinary,
			FFprobeBinary:           defaultFFprobeBinary,
			FallbackDurationSeconds: defaultFallbackDurationSeconds,
			ProbeTimeoutSeconds:     defaultProbeTimeoutSeconds,
			DefaultPreset:           preset.DefaultID,
			OutputSuffix:            defaultOutputSuffix,
		},
		Planner: Planner{
			MinVideoKbps: bitrate.DefaultMinKbps,
			MaxVideoKbps: bitrate.DefaultMaxKbps,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Completed:      true,
			Failed:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
