package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	ChatMode                  string
	Database                  DatabaseConfig
	Gemini                    GeminiConfig
	Redis                     RedisConfig
	Storage                   StorageConfig
	Upload                    UploadConfig
	Log                       LogConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// GeminiConfig holds generative-AI service settings
type GeminiConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	ChatModel string
	Timeout   time.Duration
}

// RedisConfig holds dashboard cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// StorageConfig holds raw report storage settings. An empty S3Bucket disables it.
type StorageConfig struct {
	S3Bucket string
	S3Prefix string
}

// UploadConfig limits report uploads
type UploadConfig struct {
	MaxBytes int64
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string
	Format string
}

// Chat modes
const (
	ChatModeRules = "rules"
	ChatModeLLM   = "llm"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Driver:   getEnv("DB_DRIVER", "mysql"),
		Host:     getEnv("DB_HOST", "localhost"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "marrowai"),
	}

	switch dbConfig.Driver {
	case "mysql":
		dbConfig.Port = getEnv("DB_PORT", "3306")
		dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)
	case "postgres":
		dbConfig.Port = getEnv("DB_PORT", "5432")
		dbConfig.DSN = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			dbConfig.Host, dbConfig.Port, dbConfig.Username, dbConfig.Password, dbConfig.Name, getEnv("DB_SSLMODE", "disable"))
	}
	if dsn, ok := os.LookupEnv("DATABASE_URL"); ok && dsn != "" {
		dbConfig.DSN = dsn
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	geminiTimeout, err := strconv.Atoi(getEnv("GEMINI_TIMEOUT_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid GEMINI_TIMEOUT_SECONDS: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cacheTTL, err := strconv.Atoi(getEnv("DASHBOARD_CACHE_TTL_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_CACHE_TTL_SECONDS: %w", err)
	}

	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "50"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}

	geminiConfig := GeminiConfig{
		APIKey:    getEnv("GEMINI_API_KEY", ""),
		BaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		Model:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		ChatModel: getEnv("GEMINI_CHAT_MODEL", "gemini-1.5-flash"),
		Timeout:   time.Duration(geminiTimeout) * time.Second,
	}

	defaultChatMode := ChatModeRules
	if geminiConfig.APIKey != "" {
		defaultChatMode = ChatModeLLM
	}

	cfg := &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:3000"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_jwt_refresh_secret"),
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		ChatMode:                  getEnv("CHAT_MODE", defaultChatMode),
		Database:                  dbConfig,
		Gemini:                    geminiConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			TTL:      time.Duration(cacheTTL) * time.Second,
		},
		Storage: StorageConfig{
			S3Bucket: getEnv("S3_BUCKET", ""),
			S3Prefix: getEnv("S3_PREFIX", "reports"),
		},
		Upload: UploadConfig{
			MaxBytes: maxUploadMB * 1024 * 1024,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot run with.
func (c *Config) Validate() error {
	if c.Database.Driver != "mysql" && c.Database.Driver != "postgres" {
		return fmt.Errorf("DB_DRIVER must be \"mysql\" or \"postgres\", got %q", c.Database.Driver)
	}
	if c.JWTExpirationMinutes <= 0 {
		return fmt.Errorf("JWT_EXPIRATION_MINUTES must be positive")
	}
	if c.JWTRefreshExpirationHours <= 0 {
		return fmt.Errorf("JWT_REFRESH_EXPIRATION_HOURS must be positive")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if c.Gemini.Timeout <= 0 {
		return fmt.Errorf("GEMINI_TIMEOUT_SECONDS must be positive")
	}
	switch c.ChatMode {
	case ChatModeRules:
	case ChatModeLLM:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when CHAT_MODE is %q", ChatModeLLM)
		}
	default:
		return fmt.Errorf("CHAT_MODE must be %q or %q, got %q", ChatModeRules, ChatModeLLM, c.ChatMode)
	}
	return nil
}

// IsDev reports whether the server runs in development mode.
func (c *Config) IsDev() bool {
	return c.Environment == "development"
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
