package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Orders   OrdersConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// ServerConfig holds server-related configuration.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database-related configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxConnections  int
	MinConnections  int
	MaxConnLifetime int // seconds
	AutoMigrate     bool
	// ConnectAttempts bounds the startup pings while the database comes up.
	ConnectAttempts int
	// QueryLogLevel is a pgx trace level (trace, debug, info, warn, error, none). Empty disables query logging.
	QueryLogLevel string
}

// LoggerConfig holds logger-related configuration.
type LoggerConfig struct {
	Level  string
	Format string // "json" or "console"
}

// AuthConfig holds gateway key and bearer token settings.
// An empty APIKey disables the gateway key check; an empty JWTSecret treats every caller as a guest.
type AuthConfig struct {
	APIKey      string
	JWTSecret   string
	JWTAudience string
}

// StorageConfig holds payment proof storage configuration.
type StorageConfig struct {
	Backend       string // "s3" or "local"
	Bucket        string
	Region        string
	Endpoint      string // optional S3-compatible endpoint
	LocalDir      string
	PublicBaseURL string
	ProofFolder   string
}

// OrdersConfig holds order workflow settings.
type OrdersConfig struct {
	RequireProof  bool
	MaxProofBytes int
}

// RedisConfig holds tracking cache configuration. An empty Addr disables the cache.
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	TrackingTTL    time.Duration
	// TrackingSettle is how long after a cancel the tracking entry is invalidated a second time.
	TrackingSettle time.Duration
}

// KafkaConfig holds order event publishing configuration. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Buffer  int
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnvAsInt("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "storefront"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 25),
			MinConnections:  getEnvAsInt("DB_MIN_CONNECTIONS", 5),
			MaxConnLifetime: getEnvAsInt("DB_MAX_CONN_LIFETIME", 300),
			AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
			ConnectAttempts: getEnvAsInt("DB_CONNECT_ATTEMPTS", 5),
			QueryLogLevel:   getEnv("DB_QUERY_LOG_LEVEL", ""),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			APIKey:      getEnv("API_KEY", ""),
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
			JWTAudience: getEnv("AUTH_JWT_AUDIENCE", ""),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORAGE_BACKEND", "local"),
			Bucket:        getEnv("S3_BUCKET", "transfer-proofs"),
			Region:        getEnv("S3_REGION", "us-east-1"),
			Endpoint:      getEnv("S3_ENDPOINT", ""),
			LocalDir:      getEnv("STORAGE_LOCAL_DIR", "./data/proofs"),
			PublicBaseURL: getEnv("STORAGE_PUBLIC_BASE_URL", ""),
			ProofFolder:   getEnv("STORAGE_PROOF_FOLDER", "transferencias"),
		},
		Orders: OrdersConfig{
			RequireProof:  getEnvAsBool("ORDERS_REQUIRE_PROOF", false),
			MaxProofBytes: getEnvAsInt("PROOF_MAX_BYTES", 5<<20),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			TrackingTTL:    getEnvAsDuration("TRACKING_CACHE_TTL", 30*time.Second),
			TrackingSettle: getEnvAsDuration("TRACKING_CACHE_SETTLE", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvAsSlice("KAFKA_BROKERS", nil),
			Topic:   getEnv("KAFKA_ORDERS_TOPIC", "storefront.orders"),
			Buffer:  getEnvAsInt("KAFKA_BUFFER", 256),
		},
	}

	if cfg.Storage.PublicBaseURL == "" && cfg.Storage.Backend == "local" {
		cfg.Storage.PublicBaseURL = fmt.Sprintf("http://localhost:%d/files", cfg.Server.Port)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	if c.Database.MinConnections < 1 {
		return fmt.Errorf("database min connections must be at least 1")
	}

	if c.Database.MinConnections > c.Database.MaxConnections {
		return fmt.Errorf("database min connections cannot exceed max connections")
	}

	switch c.Database.QueryLogLevel {
	case "", "none", "error", "warn", "info", "debug", "trace":
	default:
		return fmt.Errorf("invalid database query log level: %s", c.Database.QueryLogLevel)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLogLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", c.Logger.Format)
	}

	switch c.Storage.Backend {
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("S3 bucket is required when the s3 storage backend is selected")
		}
		if c.Storage.Region == "" {
			return fmt.Errorf("S3 region is required when the s3 storage backend is selected")
		}
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("local storage directory is required when the local storage backend is selected")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be s3 or local)", c.Storage.Backend)
	}

	if strings.Trim(c.Storage.ProofFolder, "/") == "" {
		return fmt.Errorf("proof folder is required")
	}

	if c.Orders.MaxProofBytes < 1 {
		return fmt.Errorf("proof max bytes must be at least 1")
	}

	if c.Redis.Addr != "" && c.Redis.TrackingTTL <= 0 {
		return fmt.Errorf("tracking cache TTL must be positive when redis is enabled")
	}

	if len(c.Kafka.Brokers) > 0 {
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka topic is required when brokers are configured")
		}
		if c.Kafka.Buffer < 1 {
			return fmt.Errorf("kafka buffer must be at least 1")
		}
	}

	return nil
}

// ConnectionString returns the PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
	)
}

// Address returns the server address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsSlice splits a comma separated variable, dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
