// Package config содержит логику чтения конфигурации магазина рангов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации магазина рангов.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	AuthSecret  string `env:"AUTH_SECRET"`
	WebhookURL  string `env:"WEBHOOK_URL"`
	UploadDir   string `env:"UPLOAD_DIR"`

	PublicBaseURL  string        `env:"PUBLIC_BASE_URL"`
	MaxUploadBytes int64         `env:"MAX_UPLOAD_BYTES" envDefault:"5242880"`
	DemoFallback   bool          `env:"DEMO_FALLBACK" envDefault:"false"`
	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"12h"`

	WebhookUsername   string        `env:"WEBHOOK_USERNAME" envDefault:"ChampaMC Store"`
	WebhookAvatarURL  string        `env:"WEBHOOK_AVATAR_URL"`
	WebhookAttempts   int           `env:"WEBHOOK_ATTEMPTS" envDefault:"3"`
	WebhookRetryDelay time.Duration `env:"WEBHOOK_RETRY_DELAY" envDefault:"1s"`
	WebhookTimeout    time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"5s"`

	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

var (
	// ErrMissingDatabaseURI возвращается, если не задан адрес базы данных.
	ErrMissingDatabaseURI = errors.New("database URI is required")
	// ErrMissingAuthSecret возвращается, если не задан ключ подписи сессий.
	ErrMissingAuthSecret = errors.New("auth secret is required")
)

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret used to sign staff sessions")
	flag.StringVar(&cfg.WebhookURL, "w", "", "chat webhook URL for order notifications")
	flag.StringVar(&cfg.UploadDir, "u", "uploads", "directory for uploaded images")

	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://" + cfg.RunAddress
	}

	return cfg, nil
}

// Validate проверяет наличие обязательных параметров.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURI == "" {
		errs = append(errs, ErrMissingDatabaseURI)
	}
	if c.AuthSecret == "" {
		errs = append(errs, ErrMissingAuthSecret)
	}
	if c.WebhookAttempts <= 0 {
		errs = append(errs, fmt.Errorf("webhook attempts must be positive, got %d", c.WebhookAttempts))
	}
	return errors.Join(errs...)
}

// NotificationsEnabled сообщает, задан ли адрес вебхука.
func (c *Config) NotificationsEnabled() bool {
	return c.WebhookURL != ""
}
