package sessionapi

import (
	"os"
	"strconv"
	"strings"
)

// Config controls session API behavior.
type Config struct {
	MaxBodyBytes int64

	// MaxDeviceInfoChars caps the free-form device descriptor (runes).
	MaxDeviceInfoChars int
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:       envInt64("LMS_API_MAX_BODY_BYTES", 1<<20), // 1 MiB
		MaxDeviceInfoChars: envInt("LMS_API_MAX_DEVICE_INFO_CHARS", 512),
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.MaxDeviceInfoChars <= 0 {
		cfg.MaxDeviceInfoChars = 512
	}

	return cfg
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
