package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config keeps runtime settings for the server, the bot and the CLI.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	JWTSecret      string
	TokenTTL       time.Duration
	TrashRetention time.Duration
	AllowedOrigins []string
	AdminEmails    map[string]string

	RateLimitPerMinute int
	RateLimitBurst     int
	RedisAddr          string

	TelegramToken      string
	ReminderInterval   time.Duration
	PurgeInterval      time.Duration
	RecurrenceInterval time.Duration
	DigestTime         string
	JobTimeout         time.Duration

	GoogleDir string
	LogLevel  slog.Level
}

func defaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("database_url", "taskboard.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("trash_retention", "48h")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("admin_emails", "")
	v.SetDefault("rate_limit_per_minute", 120)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("redis_addr", "")
	v.SetDefault("telegram_token", "")
	v.SetDefault("reminder_interval", "1m")
	v.SetDefault("purge_interval", "1h")
	v.SetDefault("recurrence_interval", "5m")
	v.SetDefault("digest_time", "09:00")
	v.SetDefault("job_timeout", "1m")
	v.SetDefault("google_dir", ".")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from an optional YAML file and environment variables.
// Environment variables win over the file; both win over defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		HTTPAddr:           strings.TrimSpace(v.GetString("http_addr")),
		DatabaseURL:        strings.TrimSpace(v.GetString("database_url")),
		JWTSecret:          strings.TrimSpace(v.GetString("jwt_secret")),
		TokenTTL:           v.GetDuration("token_ttl"),
		TrashRetention:     v.GetDuration("trash_retention"),
		AllowedOrigins:     splitList(v.Get("allowed_origins")),
		RateLimitPerMinute: v.GetInt("rate_limit_per_minute"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
		RedisAddr:          strings.TrimSpace(v.GetString("redis_addr")),
		TelegramToken:      strings.TrimSpace(v.GetString("telegram_token")),
		ReminderInterval:   v.GetDuration("reminder_interval"),
		PurgeInterval:      v.GetDuration("purge_interval"),
		RecurrenceInterval: v.GetDuration("recurrence_interval"),
		DigestTime:         strings.TrimSpace(v.GetString("digest_time")),
		JobTimeout:         v.GetDuration("job_timeout"),
		GoogleDir:          strings.TrimSpace(v.GetString("google_dir")),
	}

	emails, err := parseAdminEmails(v.Get("admin_emails"))
	if err != nil {
		return cfg, err
	}
	cfg.AdminEmails = emails

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return cfg, fmt.Errorf("invalid log_level: %w", err)
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "taskboard.db"
	}
	if cfg.TrashRetention <= 0 {
		return cfg, fmt.Errorf("trash_retention must be positive")
	}
	if cfg.TokenTTL <= 0 {
		return cfg, fmt.Errorf("token_ttl must be positive")
	}
	return cfg, nil
}

// ValidateServe checks the settings only the HTTP server needs.
func (c Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.RateLimitPerMinute < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	return nil
}

// splitList accepts a YAML list or a comma separated string.
func splitList(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case []interface{}:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	case []string:
		parts = val
	case string:
		parts = strings.Split(val, ",")
	}

	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAdminEmails accepts a YAML map or "Admin 1=a@x.com,Admin 2=b@x.com".
// Keys are lower-cased since viper lower-cases map keys read from files.
func parseAdminEmails(raw interface{}) (map[string]string, error) {
	out := make(map[string]string)
	switch val := raw.(type) {
	case map[string]interface{}:
		for k, e := range val {
			out[strings.ToLower(k)] = strings.TrimSpace(fmt.Sprint(e))
		}
	case map[string]string:
		for k, e := range val {
			out[strings.ToLower(k)] = strings.TrimSpace(e)
		}
	case string:
		for _, pair := range strings.Split(val, ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			k, e, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("invalid admin_emails entry %q, expected TYPE=EMAIL", pair)
			}
			out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(e)
		}
	}
	return out, nil
}
