// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Storage    StorageConfig
	Classifier ClassifierConfig
	Upload     UploadConfig
	Email      EmailConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
}

// StorageConfig selects and configures the document storage provider.
type StorageConfig struct {
	Provider  string // "local" or "s3"
	BasePath  string // local provider
	Bucket    string // s3 provider
	Region    string
	PublicURL string
	Timeout   time.Duration
}

// ClassifierConfig configures the external document classifier.
type ClassifierConfig struct {
	BaseURL          string
	Timeout          time.Duration
	DefaultThreshold decimal.Decimal
	// Thresholds holds per-document-type confidence thresholds keyed by
	// document type, parsed from "transcript=0.8,passport=0.9" form.
	Thresholds map[string]decimal.Decimal
	// AutoVerify controls whether uploads are dispatched to the classifier
	// asynchronously after submission.
	AutoVerify bool
}

// Threshold returns the confidence threshold for a document type.
func (c ClassifierConfig) Threshold(documentType string) decimal.Decimal {
	if t, ok := c.Thresholds[documentType]; ok {
		return t
	}
	return c.DefaultThreshold
}

// UploadConfig bounds document uploads per category.
type UploadConfig struct {
	// MaxSizeBytes holds per-category size ceilings keyed by document
	// category ("academic", "identity", "written").
	MaxSizeBytes map[string]int64
	// AllowedMimeTypes holds per-category MIME allow-lists.
	AllowedMimeTypes map[string][]string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPUseTLS   bool
	SMTPTimeout  time.Duration
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:      normalizeRedisURL(getEnv("REDIS_URL", "localhost:6379")),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Provider:  getEnv("STORAGE_PROVIDER", "local"),
			BasePath:  getEnv("STORAGE_BASE_PATH", "./uploads"),
			Bucket:    getEnv("STORAGE_S3_BUCKET", ""),
			Region:    getEnv("STORAGE_S3_REGION", "us-east-1"),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
			Timeout:   getDurationEnv("STORAGE_TIMEOUT", 15*time.Second),
		},
		Classifier: ClassifierConfig{
			BaseURL:          getEnv("CLASSIFIER_BASE_URL", "http://localhost:9100"),
			Timeout:          getDurationEnv("CLASSIFIER_TIMEOUT", 30*time.Second),
			DefaultThreshold: getDecimalEnv("CLASSIFIER_DEFAULT_THRESHOLD", "0.8"),
			Thresholds:       parseThresholds(getEnv("CLASSIFIER_THRESHOLDS", "")),
			AutoVerify:       getBoolEnv("CLASSIFIER_AUTO_VERIFY", true),
		},
		Upload: UploadConfig{
			MaxSizeBytes: map[string]int64{
				"academic": getInt64Env("UPLOAD_MAX_BYTES_ACADEMIC", 10<<20),
				"identity": getInt64Env("UPLOAD_MAX_BYTES_IDENTITY", 5<<20),
				"written":  getInt64Env("UPLOAD_MAX_BYTES_WRITTEN", 2<<20),
			},
			AllowedMimeTypes: map[string][]string{
				"academic": splitList(getEnv("UPLOAD_MIME_ACADEMIC", "application/pdf,image/jpeg,image/png")),
				"identity": splitList(getEnv("UPLOAD_MIME_IDENTITY", "image/jpeg,image/png,application/pdf")),
				"written":  splitList(getEnv("UPLOAD_MIME_WRITTEN", "application/pdf,text/plain")),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "localhost"),
			SMTPPort:     getIntEnv("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "admissions@example.edu"),
			SMTPUseTLS:   getBoolEnv("SMTP_USE_TLS", true),
			SMTPTimeout:  getDurationEnv("SMTP_TIMEOUT", 15*time.Second),
		},
	}
}

// ValidateCore checks that configuration required by every service is present.
func (c *Config) ValidateCore() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Storage.Provider == "s3" && c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_S3_BUCKET is required when STORAGE_PROVIDER=s3")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func normalizeRedisURL(url string) string {
	// Strip redis:// or redis+tls:// scheme if present
	if strings.HasPrefix(url, "redis+tls://") {
		return url[len("redis+tls://"):]
	}
	if strings.HasPrefix(url, "redis://") {
		return url[len("redis://"):]
	}
	return url
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return defaultValue
}

func getDecimalEnv(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}

// parseThresholds parses "transcript=0.8,passport=0.9" into a threshold map.
func parseThresholds(raw string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, pair := range splitList(raw) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if d, err := decimal.NewFromString(strings.TrimSpace(parts[1])); err == nil {
			out[strings.TrimSpace(parts[0])] = d
		}
	}
	return out
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
