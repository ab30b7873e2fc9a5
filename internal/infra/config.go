package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv string
	Port   string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int

	StoragePath    string
	StorageBaseURL string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	VeoModel      string

	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string

	DatabaseURL          string
	AnalyticsDatabaseURL string
	GeoIPDBPath          string

	MaxVideoDuration   int
	MaxReferenceImages int

	VeoPollInterval     time.Duration
	VeoPollTimeout      time.Duration
	VeoOperationTimeout time.Duration
	VeoMaxRetries       int

	JobRetention      time.Duration
	JobRetentionSweep time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults. Nothing is strictly required: with no keys at all the service
// runs against synthetic backends and the in-memory job store.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv: getEnv("APP_ENV", "development"),
		Port:   getEnv("PORT", "8080"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 10),

		StoragePath:    getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL: getEnv("STORAGE_BASE_URL", "http://localhost:8080/static"),

		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:      getEnv("VEO_MODEL", "veo-2.0-generate-001"),

		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io/v1"),

		DatabaseURL:          os.Getenv("DATABASE_URL"),
		AnalyticsDatabaseURL: os.Getenv("ANALYTICS_DATABASE_URL"),
		GeoIPDBPath:          os.Getenv("GEOIP_DB_PATH"),

		MaxVideoDuration:   getEnvInt("MAX_VIDEO_DURATION", 30),
		MaxReferenceImages: getEnvInt("MAX_REFERENCE_IMAGES", 5),

		VeoPollInterval:     time.Second * time.Duration(getEnvInt("VEO_POLL_INTERVAL_SECONDS", 2)),
		VeoPollTimeout:      time.Second * time.Duration(getEnvInt("VEO_POLL_TIMEOUT_SECONDS", 30)),
		VeoOperationTimeout: time.Second * time.Duration(getEnvInt("VEO_OPERATION_TIMEOUT_SECONDS", 600)),
		VeoMaxRetries:       getEnvInt("VEO_MAX_RETRIES", 3),

		JobRetention:      time.Hour * time.Duration(getEnvInt("JOB_RETENTION_HOURS", 0)),
		JobRetentionSweep: time.Minute * time.Duration(getEnvInt("JOB_RETENTION_SWEEP_MINUTES", 10)),
	}

	if cfg.MaxVideoDuration <= 0 {
		return nil, fmt.Errorf("MAX_VIDEO_DURATION must be positive")
	}
	if cfg.MaxReferenceImages <= 0 {
		return nil, fmt.Errorf("MAX_REFERENCE_IMAGES must be positive")
	}
	if cfg.VeoPollInterval <= 0 || cfg.VeoOperationTimeout <= 0 {
		return nil, fmt.Errorf("veo polling bounds must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
