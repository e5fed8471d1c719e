package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Gmail     GmailConfig     `mapstructure:"gmail"`
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// SMTPConfig holds SMTP transport configuration
type SMTPConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	SenderName         string `mapstructure:"sender_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// GmailConfig holds Gmail API transport configuration
type GmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RefreshToken string `mapstructure:"refresh_token"`
	UserEmail    string `mapstructure:"user_email"`
}

// DispatchConfig holds the send-path tuning knobs
type DispatchConfig struct {
	DefaultFrom         string `mapstructure:"default_from"`
	MaxRetryAttempts    int    `mapstructure:"max_retry_attempts"`
	DedupWindowMinutes  int    `mapstructure:"dedup_window_minutes"`
	IdempotencyTTLHours int    `mapstructure:"idempotency_ttl_hours"`
}

// RetentionConfig holds the cleanup scheduler configuration
type RetentionConfig struct {
	Schedule     string `mapstructure:"schedule"`
	DedupLogDays int    `mapstructure:"dedup_log_days"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set defaults
	setDefaults()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	viper.AutomaticEnv()

	// Bind environment variables
	bindEnvVars()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 3306)
	viper.SetDefault("database.sslmode", "disable")

	viper.SetDefault("smtp.port", 587)
	viper.SetDefault("smtp.sender_name", "Case Notifications")

	viper.SetDefault("gmail.enabled", false)

	viper.SetDefault("dispatch.max_retry_attempts", 3)
	viper.SetDefault("dispatch.dedup_window_minutes", 5)
	viper.SetDefault("dispatch.idempotency_ttl_hours", 24)

	// Daily at 03:00
	viper.SetDefault("retention.schedule", "0 0 3 * * *")
	viper.SetDefault("retention.dedup_log_days", 30)
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.dbname", "DB_NAME")
	viper.BindEnv("database.sslmode", "DB_SSLMODE")

	// SMTP
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.sender_name", "SMTP_SENDER_NAME")
	viper.BindEnv("smtp.insecure_skip_verify", "SMTP_INSECURE_SKIP_VERIFY")

	// Gmail
	viper.BindEnv("gmail.enabled", "GMAIL_ENABLED")
	viper.BindEnv("gmail.client_id", "GMAIL_CLIENT_ID")
	viper.BindEnv("gmail.client_secret", "GMAIL_CLIENT_SECRET")
	viper.BindEnv("gmail.refresh_token", "GMAIL_REFRESH_TOKEN")
	viper.BindEnv("gmail.user_email", "GMAIL_USER_EMAIL")

	// Dispatch
	viper.BindEnv("dispatch.default_from", "DISPATCH_DEFAULT_FROM")
	viper.BindEnv("dispatch.max_retry_attempts", "DISPATCH_MAX_RETRY_ATTEMPTS")
	viper.BindEnv("dispatch.dedup_window_minutes", "DISPATCH_DEDUP_WINDOW_MINUTES")
	viper.BindEnv("dispatch.idempotency_ttl_hours", "DISPATCH_IDEMPOTENCY_TTL_HOURS")

	// Retention
	viper.BindEnv("retention.schedule", "RETENTION_SCHEDULE")
	viper.BindEnv("retention.dedup_log_days", "RETENTION_DEDUP_LOG_DAYS")
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

// DedupWindow returns the content-duplicate detection window as a duration
func (c *DispatchConfig) DedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMinutes) * time.Minute
}

// IdempotencyTTL returns the idempotency record lifetime as a duration
func (c *DispatchConfig) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLHours) * time.Hour
}

// DedupLogRetention returns the deduplication audit log lifetime as a duration
func (c *RetentionConfig) DedupLogRetention() time.Duration {
	return time.Duration(c.DedupLogDays) * 24 * time.Hour
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Gmail.Enabled {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" || c.Gmail.UserEmail == "" {
			return fmt.Errorf("Gmail OAuth2 credentials are required when the Gmail transport is enabled")
		}
	} else {
		if c.SMTP.Host == "" || c.SMTP.Username == "" {
			return fmt.Errorf("SMTP host and username are required when not using the Gmail transport")
		}
	}

	if c.Dispatch.DefaultFrom == "" {
		return fmt.Errorf("dispatch default_from is required")
	}
	if c.Dispatch.MaxRetryAttempts <= 0 {
		return fmt.Errorf("dispatch max_retry_attempts must be greater than 0")
	}
	if c.Dispatch.DedupWindowMinutes <= 0 {
		return fmt.Errorf("dispatch dedup_window_minutes must be greater than 0")
	}
	if c.Dispatch.IdempotencyTTLHours <= 0 {
		return fmt.Errorf("dispatch idempotency_ttl_hours must be greater than 0")
	}

	if c.Retention.Schedule == "" {
		return fmt.Errorf("retention schedule is required")
	}
	if c.Retention.DedupLogDays <= 0 {
		return fmt.Errorf("retention dedup_log_days must be greater than 0")
	}

	return nil
}
