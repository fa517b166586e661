package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// AppEnv is the running environment (development/production).
	AppEnv string
	// ServerPort is the HTTP port to listen on.
	ServerPort string
	// MySQLDSN is the connection string for the MySQL database.
	MySQLDSN string
	// PoolMinConns is the number of idle connections kept ready.
	PoolMinConns int
	// PoolMaxConns caps the number of open connections.
	PoolMaxConns int
	// PoolIdleTimeout is how long an idle connection may sit before being closed.
	PoolIdleTimeout time.Duration
	// PoolAcquireTimeout is the maximum wait for a free connection.
	PoolAcquireTimeout time.Duration
	// ShutdownGrace is the drain window before connections are force-closed.
	ShutdownGrace time.Duration
	// StorageType determines where purge archives are written: "local" or "s3".
	StorageType string
	// LocalStoragePath is the directory for local archives.
	LocalStoragePath string
	// AWSRegion is the AWS region for S3 archives.
	AWSRegion string
	// S3Bucket is the target S3 bucket name.
	S3Bucket string
	// S3Endpoint is an optional custom endpoint (for non-AWS S3 providers like MinIO/Contabo).
	S3Endpoint string
	// S3PathStyle enables path-style addressing (required for some S3 providers).
	S3PathStyle bool
	// ArchiveCompression enables Gzip compression for purge archives.
	ArchiveCompression bool
	// SMTP settings for purge notifications.
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	// AdminSecret is the shared secret for HMAC-SHA256 signing of admin requests.
	AdminSecret string
	// AllowedOrigins is a list of CORS allowed domains.
	AllowedOrigins []string
}

func Load() *Config {
	return &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		MySQLDSN:           getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/dbname?parseTime=true"),
		PoolMinConns:       getEnvInt("POOL_MIN_CONNS", 2),
		PoolMaxConns:       getEnvInt("POOL_MAX_CONNS", 5),
		PoolIdleTimeout:    getEnvDuration("POOL_IDLE_TIMEOUT", 5*time.Minute),
		PoolAcquireTimeout: getEnvDuration("POOL_ACQUIRE_TIMEOUT", 10*time.Second),
		ShutdownGrace:      getEnvDuration("SHUTDOWN_GRACE", 10*time.Second),
		StorageType:        getEnv("STORAGE_TYPE", "local"),
		LocalStoragePath:   getEnv("LOCAL_STORAGE_PATH", "./archives"),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		S3Bucket:           getEnv("S3_BUCKET", "my-archive-bucket"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3PathStyle:        getEnvBool("S3_PATH_STYLE", false),
		ArchiveCompression: getEnvBool("COMPRESSION", false),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASS", ""),
		SMTPFrom:           getEnv("SMTP_FROM", "noreply@example.com"),
		AdminSecret:        getEnv("ADMIN_SECRET", ""),
		AllowedOrigins:     getEnvSlice("ALLOWED_ORIGINS", []string{"*"}),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		var result []string
		start := 0
		for i := 0; i < len(value); i++ {
			if value[i] == ',' {
				result = append(result, value[start:i])
				start = i + 1
			}
		}
		result = append(result, value[start:])
		return result
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
