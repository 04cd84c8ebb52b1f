package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "taskboard.db", cfg.DatabaseURL)
	assert.Equal(t, 48*time.Hour, cfg.TrashRetention)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "09:00", cfg.DigestTime)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.AdminEmails)
	assert.Error(t, cfg.ValidateServe(), "jwt secret is required to serve")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("TRASH_RETENTION", "72h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")
	t.Setenv("ADMIN_EMAILS", "Admin 1=one@example.com,Admin 2=two@example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 72*time.Hour, cfg.TrashRetention)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, map[string]string{"admin 1": "one@example.com", "admin 2": "two@example.com"}, cfg.AdminEmails)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Zero(t, cfg.RateLimitPerMinute)
	assert.NoError(t, cfg.ValidateServe())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskboard.yaml")
	content := `
http_addr: ":9090"
database_url: "postgres://taskboard@localhost/taskboard"
reminder_interval: 30s
allowed_origins:
  - https://app.example.com
admin_emails:
  Admin 3: boss@example.com
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HTTP_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.HTTPAddr, "environment wins over the file")
	assert.Equal(t, "postgres://taskboard@localhost/taskboard", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.ReminderInterval)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, map[string]string{"admin 3": "boss@example.com"}, cfg.AdminEmails)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ADMIN_EMAILS", "Admin 1")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("ADMIN_EMAILS", "")
	t.Setenv("LOG_LEVEL", "loud")
	_, err = Load("")
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("TRASH_RETENTION", "0s")
	_, err = Load("")
	assert.Error(t, err)
}
