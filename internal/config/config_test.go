package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		SMTP: SMTPConfig{
			Host:     "smtp.example.com",
			Port:     587,
			Username: "mailer",
		},
		Dispatch: DispatchConfig{
			DefaultFrom:         "noreply@example.com",
			MaxRetryAttempts:    3,
			DedupWindowMinutes:  5,
			IdempotencyTTLHours: 24,
		},
		Retention: RetentionConfig{
			Schedule:     "0 0 3 * * *",
			DedupLogDays: 30,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	invalidConfig := &Config{
		Server: ServerConfig{
			Port: "",
		},
	}
	assert.Error(t, invalidConfig.Validate())
}

func TestConfigValidationGmailToggle(t *testing.T) {
	config := validConfig()
	config.SMTP = SMTPConfig{}
	config.Gmail = GmailConfig{
		Enabled:      true,
		ClientID:     "id",
		ClientSecret: "secret",
		RefreshToken: "token",
		UserEmail:    "mailer@example.com",
	}
	assert.NoError(t, config.Validate())

	config.Gmail.RefreshToken = ""
	assert.Error(t, config.Validate())

	// Gmail disabled falls back to requiring SMTP settings.
	config.Gmail.Enabled = false
	assert.Error(t, config.Validate())
}

func TestConfigValidationDispatchBounds(t *testing.T) {
	config := validConfig()
	config.Dispatch.MaxRetryAttempts = 0
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Dispatch.DedupWindowMinutes = 0
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Dispatch.IdempotencyTTLHours = 0
	assert.Error(t, config.Validate())

	config = validConfig()
	config.Retention.DedupLogDays = 0
	assert.Error(t, config.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}

func TestDurationHelpers(t *testing.T) {
	dispatch := DispatchConfig{DedupWindowMinutes: 5, IdempotencyTTLHours: 24}
	assert.Equal(t, 5*time.Minute, dispatch.DedupWindow())
	assert.Equal(t, 24*time.Hour, dispatch.IdempotencyTTL())

	retention := RetentionConfig{DedupLogDays: 30}
	assert.Equal(t, 30*24*time.Hour, retention.DedupLogRetention())
}
