package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Supported storage backends
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"

	BlobBackendMinIO = "minio"
	BlobBackendFS    = "fs"
)

// Config holds all application configuration
type Config struct {
	// Service configuration
	ServicePort string
	ServiceName string
	APIBasePath string
	CORSOrigin  string
	ChunkSizeMB int

	// Upload limits
	ResumeMaxMB int
	VideoMaxMB  int

	// Record store configuration
	DBDriver   string
	SQLitePath string

	// TiDB configuration
	TiDBHost     string
	TiDBPort     string
	TiDBUser     string
	TiDBPassword string
	TiDBDatabase string

	// Blob object configuration
	BlobBackend string
	BlobFSRoot  string

	// MinIO configuration
	MinIOEndpoint   string
	MinIOAccessKey  string
	MinIOSecretKey  string
	MinIOBucketName string
	MinIOUseSSL     bool

	// Redis configuration
	CacheEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Tracing configuration
	TracingEnabled bool
	JaegerEndpoint string

	// Logging configuration
	LogLevel  string
	LogFormat string
}

// LoadConfig loads configuration from a .env file (if present) and
// environment variables with sensible defaults
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	config := &Config{
		// Service defaults
		ServicePort: getEnv("SERVICE_PORT", "8080"),
		ServiceName: getEnv("SERVICE_NAME", "talentdrop-service"),
		APIBasePath: strings.TrimRight(getEnv("API_BASE_PATH", ""), "/"),
		CORSOrigin:  getEnv("CORS_ORIGIN", "*"),
		ChunkSizeMB: getEnvAsInt("CHUNK_SIZE_MB", 1),

		ResumeMaxMB: getEnvAsInt("RESUME_MAX_MB", 5),
		VideoMaxMB:  getEnvAsInt("VIDEO_MAX_MB", 50),

		DBDriver:   getEnv("DB_DRIVER", DriverMySQL),
		SQLitePath: getEnv("SQLITE_PATH", "talentdrop.db"),

		// TiDB defaults
		TiDBHost:     getEnv("TIDB_HOST", "localhost"),
		TiDBPort:     getEnv("TIDB_PORT", "4000"),
		TiDBUser:     getEnv("TIDB_USER", "root"),
		TiDBPassword: getEnv("TIDB_PASSWORD", ""),
		TiDBDatabase: getEnv("TIDB_DATABASE", "talentdrop"),

		BlobBackend: getEnv("BLOB_BACKEND", BlobBackendMinIO),
		BlobFSRoot:  getEnv("BLOB_FS_ROOT", "./data/blobs"),

		// MinIO defaults
		MinIOEndpoint:   getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinIOAccessKey:  getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinIOSecretKey:  getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinIOBucketName: getEnv("MINIO_BUCKET_NAME", "uploads"),
		MinIOUseSSL:     getEnvAsBool("MINIO_USE_SSL", false),

		// Redis defaults
		CacheEnabled:  getEnvAsBool("CACHE_ENABLED", true),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Jaeger defaults
		TracingEnabled: getEnvAsBool("TRACING_ENABLED", true),
		JaegerEndpoint: getEnv("JAEGER_ENDPOINT", "localhost:4318"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks enumerated settings and limits
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want %s or %s)", c.DBDriver, DriverMySQL, DriverSQLite)
	}

	switch c.BlobBackend {
	case BlobBackendMinIO, BlobBackendFS:
	default:
		return fmt.Errorf("unsupported BLOB_BACKEND %q (want %s or %s)", c.BlobBackend, BlobBackendMinIO, BlobBackendFS)
	}

	if c.ChunkSizeMB <= 0 {
		return fmt.Errorf("CHUNK_SIZE_MB must be positive, got %d", c.ChunkSizeMB)
	}
	if c.ResumeMaxMB <= 0 || c.VideoMaxMB <= 0 {
		return fmt.Errorf("upload limits must be positive")
	}
	if c.APIBasePath != "" && !strings.HasPrefix(c.APIBasePath, "/") {
		return fmt.Errorf("API_BASE_PATH must start with '/', got %q", c.APIBasePath)
	}

	return nil
}

// GetDSN returns the TiDB connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.TiDBUser,
		c.TiDBPassword,
		c.TiDBHost,
		c.TiDBPort,
		c.TiDBDatabase,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

// GetChunkSizeBytes returns chunk size in bytes
func (c *Config) GetChunkSizeBytes() int64 {
	return int64(c.ChunkSizeMB) * 1024 * 1024
}

// GetResumeMaxBytes returns the resume upload limit in bytes
func (c *Config) GetResumeMaxBytes() int64 {
	return int64(c.ResumeMaxMB) * 1024 * 1024
}

// GetVideoMaxBytes returns the video upload limit in bytes
func (c *Config) GetVideoMaxBytes() int64 {
	return int64(c.VideoMaxMB) * 1024 * 1024
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler).With("service", c.ServiceName)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
