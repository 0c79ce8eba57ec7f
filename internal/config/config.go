package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Database
	StoreDriver string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// Redis (optional; enables cross-instance fan-out and locks)
	RedisAddress  string
	RedisPassword string

	// JWT issued by the identity provider
	JWTSecret string

	// Clock
	ClockSource   string
	ClockURL      string
	ClockTimezone string
	ClockRefresh  time.Duration

	// Workflow
	DailyReportLimit  int
	QuotaExemptRoles  string
	RejectTargetState string

	// Zone risk
	ZoneRiskWindow    time.Duration
	ZoneCautionAt     int
	ZoneDangerAt      int
	ZoneSweepInterval time.Duration
	ZoneCacheTTL      time.Duration

	// Notifications
	NotifyDedupeSize int
	NotifyBuffer     int

	// Server
	Port        string
	CORSOrigins string

	// Campus catalogue seed
	CampusSeedPath string

	// Error tracking
	SentryDSN string
	AppEnv    string

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		StoreDriver: getEnv("STORE_DRIVER", "postgres"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "campus_safety"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		ClockSource:   getEnv("CLOCK_SOURCE", "system"),
		ClockURL:      getEnv("CLOCK_URL", "https://timeapi.io/api/time/current/zone?timeZone=America/Lima"),
		ClockTimezone: getEnv("CLOCK_TIMEZONE", "America/Lima"),
		ClockRefresh:  parseDuration(getEnv("CLOCK_REFRESH", "10m"), 10*time.Minute),

		DailyReportLimit:  parseInt(getEnv("DAILY_REPORT_LIMIT", "3"), 3),
		QuotaExemptRoles:  getEnv("QUOTA_EXEMPT_ROLES", "ADMIN,SECURITY"),
		RejectTargetState: getEnv("REJECT_TARGET_STATE", "EN_PROCESO"),

		ZoneRiskWindow:    parseDuration(getEnv("ZONE_RISK_WINDOW", "0"), 0),
		ZoneCautionAt:     parseInt(getEnv("ZONE_CAUTION_AT", "2"), 2),
		ZoneDangerAt:      parseInt(getEnv("ZONE_DANGER_AT", "3"), 3),
		ZoneSweepInterval: parseDuration(getEnv("ZONE_SWEEP_INTERVAL", "0"), 0),
		ZoneCacheTTL:      parseDuration(getEnv("ZONE_CACHE_TTL", "30s"), 30*time.Second),

		NotifyDedupeSize: parseInt(getEnv("NOTIFY_DEDUPE_SIZE", "100"), 100),
		NotifyBuffer:     parseInt(getEnv("NOTIFY_BUFFER", "64"), 64),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),

		CampusSeedPath: getEnv("CAMPUS_SEED_PATH", "campus.json"),

		SentryDSN: getEnv("SENTRY_DSN", ""),
		AppEnv:    getEnv("APP_ENV", "development"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports the first setting the server cannot start without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	switch c.StoreDriver {
	case "postgres":
		if c.DBPassword == "" {
			return errors.New("DB_PASSWORD environment variable is required")
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.ClockSource {
	case "system":
	case "remote":
		if c.ClockURL == "" {
			return errors.New("CLOCK_URL is required when CLOCK_SOURCE=remote")
		}
	default:
		return fmt.Errorf("unsupported CLOCK_SOURCE %q", c.ClockSource)
	}
	return nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// ExemptRoles returns the roles that bypass the daily report quota.
func (c *Config) ExemptRoles() []string {
	return parseCSV(c.QuotaExemptRoles)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
