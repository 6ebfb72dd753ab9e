package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Origin      string
	Environment string

	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int

	Database  DatabaseConfig
	Storage   StorageConfig
	AI        AIConfig
	Upload    UploadConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds database connection details.
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// StorageConfig holds object storage settings.
type StorageConfig struct {
	Bucket          string
	CDNDomain       string
	CredentialsFile string
}

// AIConfig holds the generative model API settings.
type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// UploadConfig holds file upload policy.
type UploadConfig struct {
	MaxFiles     int
	MaxFileBytes int64
}

// RateLimitConfig holds the sliding-window throttle settings.
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
}

// LoadConfig loads configuration from environment variables.
//
// Secrets and external credentials have no production fallbacks: when
// APP_ENV=production, a missing JWT secret, database password, storage
// bucket, or model API key is a startup error. Development substitutes
// clearly marked placeholders so the server can run locally.
func LoadConfig() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	isProd := env == "production"

	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "sehatlog"),
	}
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}
	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	aiTimeoutSec, err := strconv.Atoi(getEnv("AI_TIMEOUT_SECONDS", "120"))
	if err != nil {
		return nil, fmt.Errorf("invalid AI_TIMEOUT_SECONDS: %w", err)
	}

	rlWindowSec, err := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "900"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_SECONDS: %w", err)
	}
	rlMax, err := strconv.Atoi(getEnv("RATE_LIMIT_MAX_REQUESTS", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "5000"),
		Origin:      getEnv("ORIGIN", "http://localhost:3000"),
		Environment: env,

		JWTSecret:                 devFallback(isProd, "JWT_SECRET", "dev-only-jwt-secret"),
		JWTRefreshSecret:          devFallback(isProd, "JWT_REFRESH_SECRET", "dev-only-refresh-secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,

		Database: dbConfig,
		Storage: StorageConfig{
			Bucket:          devFallback(isProd, "STORAGE_BUCKET", "sehatlog-dev-reports"),
			CDNDomain:       getEnv("STORAGE_CDN_DOMAIN", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		},
		AI: AIConfig{
			BaseURL: getEnv("AI_BASE_URL", "https://generativelanguage.googleapis.com"),
			APIKey:  devFallback(isProd, "AI_API_KEY", "dev-only-api-key"),
			Model:   getEnv("AI_MODEL", "gemini-1.5-flash"),
			Timeout: time.Duration(aiTimeoutSec) * time.Second,
		},
		Upload: UploadConfig{
			MaxFiles:     5,
			MaxFileBytes: 10 << 20, // 10MB
		},
		RateLimit: RateLimitConfig{
			Window:      time.Duration(rlWindowSec) * time.Second,
			MaxRequests: rlMax,
		},
	}

	if isProd {
		if err := cfg.validateProduction(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// validateProduction refuses to start with missing secrets rather than
// substituting defaults.
func (c *Config) validateProduction() error {
	missing := []string{}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.JWTRefreshSecret == "" {
		missing = append(missing, "JWT_REFRESH_SECRET")
	}
	if c.Database.Password == "" {
		missing = append(missing, "DB_PASSWORD")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "STORAGE_BUCKET")
	}
	if c.AI.APIKey == "" {
		missing = append(missing, "AI_API_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration in production: %v", missing)
	}
	return nil
}

// Helper function to get environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// devFallback returns the env value, substituting the placeholder only
// outside production. In production the empty string flows through to
// validateProduction, which fails startup.
func devFallback(isProd bool, key, placeholder string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if isProd {
		return ""
	}
	return placeholder
}
