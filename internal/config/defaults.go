package config

const (
	defaultConfigPath          = "~/.config/reelpull/config.toml"
	defaultDownloadDir         = "~/.local/share/reelpull/downloads"
	defaultStateDir            = "~/.local/share/reelpull"
	defaultLogDir              = "~/.local/share/reelpull/logs"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultYtdlpBinary         = "yt-dlp"
	defaultFFmpegBinary        = "ffmpeg"
	defaultMetadataTimeout     = 120
	defaultHighConcurrency     = 5
	defaultMidConcurrency      = 3
	defaultLowConcurrency      = 2
	defaultBlockTimeout        = 5
	defaultConnectTimeout      = 5
	defaultSampleInterval      = 30
	defaultAdjustInterval      = 10
	defaultOverloadPercent     = 80
	defaultSeverePercent       = 90
	defaultJobTimeout          = 7200
	defaultErrorMessageLimit   = 500
	defaultPremiumDays         = 30
	defaultFreeDays            = 7
	defaultAnonymousTTLMinutes = 60
	defaultSweepInterval       = 600
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultFFmpegSearchPaths = []string{
	"/usr/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/opt/homebrew/bin/ffmpeg",
	"/snap/bin/ffmpeg",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Tools: Tools{
			YtdlpBinary:       defaultYtdlpBinary,
			FFmpegBinary:      defaultFFmpegBinary,
			FFmpegSearchPaths: append([]string(nil), defaultFFmpegSearchPaths...),
			MetadataTimeout:   defaultMetadataTimeout,
		},
		Queue: Queue{
			HighConcurrency: defaultHighConcurrency,
			MidConcurrency:  defaultMidConcurrency,
			LowConcurrency:  defaultLowConcurrency,
			BlockTimeout:    defaultBlockTimeout,
			ConnectTimeout:  defaultConnectTimeout,
		},
		Load: LoadSettings{
			SampleInterval:  defaultSampleInterval,
			AdjustInterval:  defaultAdjustInterval,
			OverloadPercent: defaultOverloadPercent,
			SeverePercent:   defaultSeverePercent,
		},
		Jobs: Jobs{
			Timeout:           defaultJobTimeout,
			ErrorMessageLimit: defaultErrorMessageLimit,
		},
		Retention: Retention{
			PremiumDays:         defaultPremiumDays,
			FreeDays:            defaultFreeDays,
			AnonymousTTLMinutes: defaultAnonymousTTLMinutes,
			SweepInterval:       defaultSweepInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			OnFailure:      true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
