package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opschat/opschat/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Cache configuration (optional permission cache)
	Cache CacheConfig

	// Auth configuration
	Auth AuthConfig

	// Upstream agent defaults
	Agents AgentsConfig

	// Document blob storage
	Storage StorageConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// CORS allowed origins, comma separated
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// CacheConfig holds settings for the optional Redis permission cache
type CacheConfig struct {
	Enabled  bool
	RedisURL string
	Password string
	DB       int
	TTL      time.Duration
}

// AuthConfig holds JWT and password settings
type AuthConfig struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	BcryptCost         int
}

// AgentsConfig holds upstream agent defaults. Per-deployment identity
// overrides live in the database and take precedence over these.
type AgentsConfig struct {
	// Bedrock
	AWSRegion         string
	BedrockAgentID    string
	BedrockAgentAlias string
	BedrockTimeout    time.Duration
	BedrockMaxRetries int

	// ADK
	ADKBaseURL         string
	ADKSessionEndpoint string
	ADKRunEndpoint     string
	ADKAppName         string
	ADKTimeout         time.Duration
}

// StorageConfig holds document blob storage settings
type StorageConfig struct {
	// Type is "filesystem" or "s3"
	Type           string
	FilesystemRoot string

	S3Endpoint     string
	S3Region       string
	S3Bucket       string
	S3UsePathStyle bool
}

// ObservabilityConfig holds logging and metrics settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Auth:          loadAuthConfig(),
		Agents:        loadAgentsConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	origins := strings.Split(getEnv("OPSCHAT_ALLOWED_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return ServerConfig{
		Host:            getEnv("OPSCHAT_HOST", "0.0.0.0"),
		Port:            getEnv("OPSCHAT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("OPSCHAT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("OPSCHAT_WRITE_TIMEOUT", 620*time.Second),
		IdleTimeout:     getEnvDuration("OPSCHAT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("OPSCHAT_SHUTDOWN_TIMEOUT", 30*time.Second),
		AllowedOrigins:  origins,
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("DATABASE_URL", "postgres://localhost:5432/opschat?sslmode=disable"),
		MaxOpenConns:    getEnvInt("OPSCHAT_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("OPSCHAT_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("OPSCHAT_DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func loadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:  getEnvBool("OPSCHAT_CACHE_ENABLED", false),
		RedisURL: getEnv("OPSCHAT_REDIS_URL", "localhost:6379"),
		Password: getEnv("OPSCHAT_REDIS_PASSWORD", ""),
		DB:       getEnvInt("OPSCHAT_REDIS_DB", 0),
		TTL:      getEnvDuration("OPSCHAT_CACHE_TTL", 60*time.Second),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret:          getEnv("OPSCHAT_JWT_SECRET", ""),
		AccessTokenExpiry:  getEnvDuration("OPSCHAT_ACCESS_TOKEN_EXPIRY", 30*time.Minute),
		RefreshTokenExpiry: getEnvDuration("OPSCHAT_REFRESH_TOKEN_EXPIRY", 7*24*time.Hour),
		BcryptCost:         getEnvInt("OPSCHAT_BCRYPT_COST", 12),
	}
}

func loadAgentsConfig() AgentsConfig {
	return AgentsConfig{
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		BedrockAgentID:     getEnv("OPSCHAT_BEDROCK_AGENT_ID", ""),
		BedrockAgentAlias:  getEnv("OPSCHAT_BEDROCK_AGENT_ALIAS", ""),
		BedrockTimeout:     getEnvDuration("OPSCHAT_BEDROCK_TIMEOUT", 600*time.Second),
		BedrockMaxRetries:  getEnvInt("OPSCHAT_BEDROCK_MAX_RETRIES", 5),
		ADKBaseURL:         getEnv("OPSCHAT_ADK_BASE_URL", ""),
		ADKSessionEndpoint: getEnv("OPSCHAT_ADK_SESSION_ENDPOINT", ""),
		ADKRunEndpoint:     getEnv("OPSCHAT_ADK_RUN_ENDPOINT", ""),
		ADKAppName:         getEnv("OPSCHAT_ADK_APP_NAME", "opschat"),
		ADKTimeout:         getEnvDuration("OPSCHAT_ADK_TIMEOUT", 600*time.Second),
	}
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Type:           getEnv("OPSCHAT_STORAGE_TYPE", "filesystem"),
		FilesystemRoot: getEnv("OPSCHAT_FILESYSTEM_ROOT", "/var/lib/opschat/documents"),
		S3Endpoint:     getEnv("OPSCHAT_S3_ENDPOINT", ""),
		S3Region:       getEnv("OPSCHAT_S3_REGION", "us-east-1"),
		S3Bucket:       getEnv("OPSCHAT_S3_BUCKET", ""),
		S3UsePathStyle: getEnvBool("OPSCHAT_S3_USE_PATH_STYLE", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("OPSCHAT_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("OPSCHAT_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required (set OPSCHAT_JWT_SECRET)")
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31")
	}

	switch c.Storage.Type {
	case "filesystem":
		if c.Storage.FilesystemRoot == "" {
			return fmt.Errorf("filesystem root is required for filesystem storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3 bucket is required for s3 storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be filesystem or s3)", c.Storage.Type)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
