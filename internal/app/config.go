package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	// Env is the deployment environment ("development" or "production").
	// Production tightens the startup security policy.
	Env string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// If true, embedded migrations run at startup when a database is configured.
	MigrateOnStart bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// DevUsers seeds the in-memory authenticator: "alice:secret,bob:hunter2".
	// Empty means no dev users (production wires a real credential backend).
	DevUsers string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("LMS_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("LMS_LOG_LEVEL", "info"),
		Env:      EnvString("LMS_ENV", "development"),

		ReadHeaderTimeout: EnvDuration("LMS_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("LMS_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("LMS_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("LMS_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("LMS_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("LMS_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("LMS_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("LMS_DB_MIN_CONNS", 0),

		MigrateOnStart:     EnvBool("LMS_DB_MIGRATE_ON_START", true),
		ReadinessRequireDB: EnvBool("LMS_READINESS_REQUIRE_DB", false),

		DevUsers: EnvString("LMS_DEV_USERS", ""),
	}
}
