package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string

	MaxUploadBytes int64
	CORSOrigin     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	RateLimit      RateLimitConfig
	MetricsEnabled bool

	VAT     VATConfig
	Archive ArchiveConfig
}

// RateLimitConfig sets the per-IP token bucket on the analysis endpoint.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type VATConfig struct {
	RateCheckEnabled bool
	RateTolerance    float64 // percentage points
	MappingFile      string  // optional JSON column/scheme mapping rules
}

// Archive backends.
const (
	ArchiveNone  = "none"
	ArchiveLocal = "local"
	ArchiveS3    = "s3"
)

// ArchiveConfig selects where analysis results are kept for later retrieval.
type ArchiveConfig struct {
	Backend string // none, local or s3
	Dir     string // local backend root

	S3Endpoint       string
	S3Region         string
	S3AccessKey      string
	S3SecretKey      string
	S3ForcePathStyle bool
	S3Bucket         string
	S3Prefix         string
}

// Load reads an optional .env file from the working directory, then builds the
// configuration from the environment.
func Load() (*Config, error) {
	// A missing .env file is normal outside development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 32<<20)),
		CORSOrigin:     getEnv("CORS_ORIGIN", "*"),
		ReadTimeout:    getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getEnvDuration("WRITE_TIMEOUT", 60*time.Second),

		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
			Burst: getEnvInt("RATE_LIMIT_BURST", 10),
		},
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),

		VAT: VATConfig{
			RateCheckEnabled: getEnvBool("VAT_RATE_CHECK_ENABLED", true),
			RateTolerance:    getEnvFloat("VAT_RATE_TOLERANCE", 0.5),
			MappingFile:      getEnv("VAT_MAPPING_FILE", ""),
		},

		Archive: ArchiveConfig{
			Backend: strings.ToLower(getEnv("ARCHIVE_BACKEND", ArchiveNone)),
			Dir:     getEnv("ARCHIVE_DIR", "./data/archive"),

			S3Endpoint:       getEnv("S3_ENDPOINT", ""),
			S3Region:         getEnv("S3_REGION", "us-east-1"),
			S3AccessKey:      getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretKey:      getEnv("S3_SECRET_ACCESS_KEY", ""),
			S3ForcePathStyle: getEnvBool("S3_FORCE_PATH_STYLE", true),
			S3Bucket:         getEnv("S3_BUCKET", ""),
			S3Prefix:         getEnv("S3_PREFIX", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.VAT.RateTolerance < 0 {
		return fmt.Errorf("VAT_RATE_TOLERANCE must not be negative, got %g", c.VAT.RateTolerance)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Archive.Backend {
	case ArchiveNone:
	case ArchiveLocal:
		if c.Archive.Dir == "" {
			return fmt.Errorf("ARCHIVE_DIR is required when ARCHIVE_BACKEND=local")
		}
	case ArchiveS3:
		if c.Archive.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when ARCHIVE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be one of none, local, s3, got %q", c.Archive.Backend)
	}
	return nil
}

// SlogLevel returns the configured log level. Load has already validated it.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLogLevel(c.LogLevel)
	return level
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", s)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
