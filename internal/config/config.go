package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trainhub/platform/signing-backend/pkg/pdf"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	Email    EmailConfig    `json:"email"`
	Events   EventsConfig   `json:"events"`
	Redis    RedisConfig    `json:"redis"`
	Signing  SigningConfig  `json:"signing"`
	Auth     AuthConfig     `json:"auth"`
	Logging  LoggingConfig  `json:"logging"`
	Workers  WorkersConfig  `json:"workers"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Mode         string        `json:"mode"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"db_name"`
	SSLMode        string        `json:"ssl_mode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleConns   int           `json:"max_idle_conns"`
	MaxLifetime    time.Duration `json:"max_lifetime"`
	AutoMigrate    bool          `json:"auto_migrate"`
}

// StorageConfig points at the S3-compatible bucket holding documents.
// An empty Endpoint and Region keeps objects in memory.
type StorageConfig struct {
	Bucket          string `json:"bucket"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	UsePathStyle    bool   `json:"use_path_style"`
	PublicBaseURL   string `json:"public_base_url"`
}

// EmailConfig - SES sender; disabled without a From address
type EmailConfig struct {
	From     string `json:"from"`
	FromName string `json:"from_name"`
	Region   string `json:"region"`
}

// EventsConfig - SNS topic for signing events
type EventsConfig struct {
	TopicARN string `json:"topic_arn"`
	Region   string `json:"region"`
}

type RedisConfig struct {
	URL     string        `json:"url"`
	LockTTL time.Duration `json:"lock_ttl"`
}

// SigningConfig
type SigningConfig struct {
	EvidenceSecret string `json:"evidence_secret"`
	PublicAppURL   string `json:"public_app_url"`
	// SignZones, when set, override the zones of every document and template.
	SignZones []pdf.Zone `json:"sign_zones"`
}

// AuthConfig - HS256 secret of the staff tokens guarding evidence exports.
// Evidence routes are not mounted without it.
type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// WorkersConfig
type WorkersConfig struct {
	ReminderSchedule string        `json:"reminder_schedule"`
	ReminderAfter    time.Duration `json:"reminder_after"`
	ReminderBatch    int           `json:"reminder_batch"`
}

var ErrMissingEvidenceSecret = errors.New("config: SIGNATURE_EVIDENCE_SECRET is required")

// LoadConfig loads configuration from .env, file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	overrideWithEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "trainhub",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
			MaxLifetime:    30 * time.Minute,
			AutoMigrate:    true,
		},
		Storage: StorageConfig{
			Bucket: "documents",
		},
		Redis: RedisConfig{
			LockTTL: 2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Workers: WorkersConfig{
			ReminderSchedule: "0 0 9 * * *",
			ReminderAfter:    72 * time.Hour,
			ReminderBatch:    100,
		},
	}
}

func overrideWithEnv(config *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	setString("SERVER_HOST", &config.Server.Host)
	setInt("SERVER_PORT", &config.Server.Port)
	setString("GIN_MODE", &config.Server.Mode)

	setString("DATABASE_HOST", &config.Database.Host)
	setInt("DATABASE_PORT", &config.Database.Port)
	setString("DATABASE_USER", &config.Database.User)
	setString("DATABASE_PASSWORD", &config.Database.Password)
	setString("DATABASE_DBNAME", &config.Database.DBName)
	setString("DATABASE_SSLMODE", &config.Database.SSLMode)
	setBool("DATABASE_AUTO_MIGRATE", &config.Database.AutoMigrate)

	setString("STORAGE_BUCKET", &config.Storage.Bucket)
	setString("STORAGE_REGION", &config.Storage.Region)
	setString("STORAGE_ENDPOINT", &config.Storage.Endpoint)
	setString("STORAGE_ACCESS_KEY_ID", &config.Storage.AccessKeyID)
	setString("STORAGE_SECRET_ACCESS_KEY", &config.Storage.SecretAccessKey)
	setBool("STORAGE_USE_PATH_STYLE", &config.Storage.UsePathStyle)
	setString("STORAGE_PUBLIC_BASE_URL", &config.Storage.PublicBaseURL)

	setString("EMAIL_FROM", &config.Email.From)
	setString("EMAIL_FROM_NAME", &config.Email.FromName)
	setString("AWS_REGION", &config.Email.Region)
	setString("AWS_REGION", &config.Events.Region)
	setString("EVENTS_TOPIC_ARN", &config.Events.TopicARN)

	setString("REDIS_URL", &config.Redis.URL)
	setDuration("REDIS_LOCK_TTL", &config.Redis.LockTTL)

	setString("SIGNATURE_EVIDENCE_SECRET", &config.Signing.EvidenceSecret)
	setString("PUBLIC_APP_URL", &config.Signing.PublicAppURL)

	setString("AUTH_JWT_SECRET", &config.Auth.JWTSecret)

	setString("LOG_LEVEL", &config.Logging.Level)

	setString("REMINDER_SCHEDULE", &config.Workers.ReminderSchedule)
	setDuration("REMINDER_AFTER", &config.Workers.ReminderAfter)
	setInt("REMINDER_BATCH", &config.Workers.ReminderBatch)
}

// Validate rejects configurations the signing core cannot run with.
func (c *Config) Validate() error {
	if c.Signing.EvidenceSecret == "" {
		return ErrMissingEvidenceSecret
	}
	if c.Storage.Bucket == "" {
		return errors.New("config: storage bucket is required")
	}
	return nil
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the process logger at the configured level.
func (c *LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
