package config

const (
	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultVideoCodec    = "libx264"
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"

	defaultPresetLowKbps    = 1000
	defaultPresetMediumKbps = 2500
	defaultPresetHighKbps   = 5000
)

func defaultVisibleExtensions() []string {
	return []string{"mp4", "mkv", "mov", "avi", "webm"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Encoder: Encoder{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			VideoCodec:    defaultVideoCodec,
		},
		Browse: Browse{
			VisibleExtensions: defaultVisibleExtensions(),
		},
		Presets: Presets{
			Low:    defaultPresetLowKbps,
			Medium: defaultPresetMediumKbps,
			High:   defaultPresetHighKbps,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
