package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// It follows the 12-factor app methodology by prioritizing environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	S3       S3Config
	Outbox   OutboxConfig
	Presence PresenceConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type S3Config struct {
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Endpoint   string
	PublicBase string
	PresignTTL time.Duration
}

type OutboxConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

type PresenceConfig struct {
	TTL          time.Duration
	ReapInterval time.Duration
}

// LoadConfig loads configuration from environment variables.
// A .env file in the working directory is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			Environment: getEnv("APP_ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "driftchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			AccessSecret:  getEnv("AUTH_ACCESS_SECRET", "dev-access-secret"),
			RefreshSecret: getEnv("AUTH_REFRESH_SECRET", "dev-refresh-secret"),
			AccessTTL:     getEnvAsDuration("AUTH_ACCESS_TTL", 15*time.Minute),
			RefreshTTL:    getEnvAsDuration("AUTH_REFRESH_TTL", 7*24*time.Hour),
		},
		S3: S3Config{
			Region:     getEnv("S3_REGION", ""),
			Bucket:     getEnv("S3_BUCKET", ""),
			AccessKey:  getEnv("S3_ACCESS_KEY", ""),
			SecretKey:  getEnv("S3_SECRET_KEY", ""),
			Endpoint:   getEnv("S3_ENDPOINT", ""),
			PublicBase: getEnv("S3_PUBLIC_BASE", ""),
			PresignTTL: getEnvAsDuration("S3_PRESIGN_TTL", 15*time.Minute),
		},
		Outbox: OutboxConfig{
			Interval:   getEnvAsDuration("OUTBOX_INTERVAL", 2*time.Second),
			BatchSize:  getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
			MaxRetries: getEnvAsInt("OUTBOX_MAX_RETRIES", 5),
		},
		Presence: PresenceConfig{
			TTL:          getEnvAsDuration("PRESENCE_TTL", 90*time.Second),
			ReapInterval: getEnvAsDuration("PRESENCE_REAP_INTERVAL", 30*time.Second),
		},
	}, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
