package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Settings captures deployment-level configuration read from the environment.
// User-facing preferences (language) live in the preference store instead.
type Settings struct {
	StorageBackend string
	RedisURL       string
	ServerPort     string
	SubmitDelay    time.Duration
}

// FromEnv builds Settings from environment variables so main stays lean.
// Invalid values are logged and replaced by their defaults.
func FromEnv() Settings {
	s := Settings{
		StorageBackend: StorageBackendPreferences,
		RedisURL:       os.Getenv(EnvRedisURL),
		ServerPort:     DefaultServerPort,
		SubmitDelay:    DefaultSubmitDelay,
	}

	switch v := os.Getenv(EnvStorage); v {
	case "":
	case StorageBackendPreferences, StorageBackendRedis, StorageBackendMemory:
		s.StorageBackend = v
	default:
		warnInvalid(EnvStorage, v)
	}

	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 && port <= 65535 {
			s.ServerPort = v
		} else {
			warnInvalid(EnvServerPort, v)
		}
	}

	if v := os.Getenv(EnvSubmitDelay); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			s.SubmitDelay = d
		} else {
			warnInvalid(EnvSubmitDelay, v)
		}
	}

	return s
}

func warnInvalid(key, value string) {
	slog.Warn(ErrInvalidEnv,
		LogKeyComponent, CompConfig,
		LogKeyKey, key,
		LogKeyValue, value,
	)
}
