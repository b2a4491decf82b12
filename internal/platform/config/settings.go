package config

import "time"

// Settings is the service configuration resolved from the environment.
type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string

	// PlaybackMode is "live" or "ondemand".
	PlaybackMode string
	// SyncInterval overrides the mode's tick period when positive.
	SyncInterval time.Duration
	// DriftThreshold overrides the default drift threshold (seconds) when positive.
	DriftThreshold float64

	StaticOffsetsPath string
	UserOffsetsPath   string
	Season            int
}

// FromEnv reads Settings from environment variables, applying defaults.
func FromEnv() Settings {
	return Settings{
		Port:              GetEnv("PORT", "8080"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
		PlaybackMode:      GetEnv("PLAYBACK_MODE", "ondemand"),
		SyncInterval:      GetEnvDuration("SYNC_INTERVAL", 0),
		DriftThreshold:    GetEnvFloat("DRIFT_THRESHOLD_SECONDS", 0),
		StaticOffsetsPath: GetEnv("STATIC_OFFSETS_PATH", ""),
		UserOffsetsPath:   GetEnv("USER_OFFSETS_PATH", "offsets.json"),
		Season:            GetEnvInt("SEASON", time.Now().Year()),
	}
}
