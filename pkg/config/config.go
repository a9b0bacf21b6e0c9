package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	BaseURL   string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Uploads       UploadsConfig
	Archive       ArchiveConfig
	Documents     DocumentsConfig
	SMTP          SMTPConfig
	Outbox        OutboxConfig
	Alerts        AlertsConfig
	Notifications NotificationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// UploadsConfig constrains document attachments.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ArchiveConfig maps retention policies to concrete horizons in years.
type ArchiveConfig struct {
	RetentionYears map[string]int
}

// DocumentsConfig tunes the registry read path.
type DocumentsConfig struct {
	CacheTTL        time.Duration
	AllocateRetries int
}

// SMTPConfig holds outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	Enabled  bool
}

// OutboxConfig tunes external integration delivery.
type OutboxConfig struct {
	DefaultTimeout       time.Duration
	DefaultMaxAttempts   int
	DefaultRetryInterval time.Duration
	RetryPollInterval    time.Duration
}

// AlertsConfig tunes the scheduled alert runner.
type AlertsConfig struct {
	Enabled      bool
	PollInterval time.Duration
}

// NotificationsConfig governs email fan-out and cleanup.
type NotificationsConfig struct {
	EmailWorkers    int
	CleanupAgeDays  int
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.BaseURL = v.GetString("BASE_URL")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
	}

	cfg.Archive = ArchiveConfig{
		RetentionYears: map[string]int{
			"PERMANENTE":    v.GetInt("RETENTION_PERMANENTE_YEARS"),
			"LARGO_PLAZO":   v.GetInt("RETENTION_LARGO_PLAZO_YEARS"),
			"MEDIANO_PLAZO": v.GetInt("RETENTION_MEDIANO_PLAZO_YEARS"),
			"CORTO_PLAZO":   v.GetInt("RETENTION_CORTO_PLAZO_YEARS"),
		},
	}

	cfg.Documents = DocumentsConfig{
		CacheTTL:        parseDuration(v.GetString("DOCUMENTS_CACHE_TTL"), 5*time.Minute),
		AllocateRetries: v.GetInt("DOCUMENTS_ALLOCATE_RETRIES"),
	}

	cfg.SMTP = SMTPConfig{
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		User:     v.GetString("SMTP_USER"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
		Enabled:  v.GetBool("SMTP_ENABLED"),
	}

	cfg.Outbox = OutboxConfig{
		DefaultTimeout:       parseDuration(v.GetString("OUTBOX_DEFAULT_TIMEOUT"), 30*time.Second),
		DefaultMaxAttempts:   v.GetInt("OUTBOX_DEFAULT_MAX_ATTEMPTS"),
		DefaultRetryInterval: parseDuration(v.GetString("OUTBOX_DEFAULT_RETRY_INTERVAL"), 5*time.Minute),
		RetryPollInterval:    parseDuration(v.GetString("OUTBOX_RETRY_POLL_INTERVAL"), time.Minute),
	}

	cfg.Alerts = AlertsConfig{
		Enabled:      v.GetBool("ENABLE_ALERTS"),
		PollInterval: parseDuration(v.GetString("ALERTS_POLL_INTERVAL"), time.Minute),
	}

	cfg.Notifications = NotificationsConfig{
		EmailWorkers:    v.GetInt("NOTIFICATIONS_EMAIL_WORKERS"),
		CleanupAgeDays:  v.GetInt("NOTIFICATIONS_CLEANUP_AGE_DAYS"),
		CleanupInterval: parseDuration(v.GetString("NOTIFICATIONS_CLEANUP_INTERVAL"), 24*time.Hour),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("BASE_URL", "http://localhost:8080")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tramite_drtc")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("UPLOADS_STORAGE_DIR", "./adjuntos")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "application/pdf,image/jpeg,image/png,image/gif,application/msword,application/vnd.openxmlformats-officedocument.wordprocessingml.document")

	v.SetDefault("RETENTION_PERMANENTE_YEARS", 100)
	v.SetDefault("RETENTION_LARGO_PLAZO_YEARS", 10)
	v.SetDefault("RETENTION_MEDIANO_PLAZO_YEARS", 5)
	v.SetDefault("RETENTION_CORTO_PLAZO_YEARS", 2)

	v.SetDefault("DOCUMENTS_CACHE_TTL", "5m")
	v.SetDefault("DOCUMENTS_ALLOCATE_RETRIES", 3)

	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "mesadepartes@drtc.gob.pe")
	v.SetDefault("SMTP_ENABLED", false)

	v.SetDefault("OUTBOX_DEFAULT_TIMEOUT", "30s")
	v.SetDefault("OUTBOX_DEFAULT_MAX_ATTEMPTS", 3)
	v.SetDefault("OUTBOX_DEFAULT_RETRY_INTERVAL", "5m")
	v.SetDefault("OUTBOX_RETRY_POLL_INTERVAL", "1m")

	v.SetDefault("ENABLE_ALERTS", false)
	v.SetDefault("ALERTS_POLL_INTERVAL", "1m")

	v.SetDefault("NOTIFICATIONS_EMAIL_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_CLEANUP_AGE_DAYS", 90)
	v.SetDefault("NOTIFICATIONS_CLEANUP_INTERVAL", "24h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
