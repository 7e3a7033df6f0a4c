package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// HTTP control surface
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/disbursements.db"`

	// IMAP source
	IMAPServer      string        `env:"IMAP_SERVER"` // host:port; resolved from IMAP_USER domain when empty
	IMAPUser        string        `env:"IMAP_USER,required,notEmpty"`
	IMAPPassword    string        `env:"IMAP_PASSWORD,required,notEmpty"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`

	// Monitoring defaults (overridable per StartSession request)
	PollInterval  time.Duration `env:"POLL_INTERVAL" envDefault:"1m"`
	EmailFolders  string        `env:"EMAIL_FOLDERS" envDefault:"INBOX"`
	SubjectFilter string        `env:"SUBJECT_FILTER"`
	SenderFilter  string        `env:"SENDER_FILTER"`
	Lookback      time.Duration `env:"LOOKBACK" envDefault:"5m"`

	// Notifier (system-of-record proof attachment, optional)
	NotifierBaseURL string `env:"NOTIFIER_BASE_URL"`
	NotifierUserID  string `env:"NOTIFIER_USER_ID"`
	NotifierAPIKey  string `env:"NOTIFIER_API_KEY"`

	// Object store for proof documents (optional)
	ObjectStoreURL    string `env:"OBJECT_STORE_URL"`
	ObjectStoreBucket string `env:"OBJECT_STORE_BUCKET" envDefault:"disbursement-proofs"`
	ObjectStoreAPIKey string `env:"OBJECT_STORE_API_KEY"`

	// Telegram ops alerts (optional)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Folders returns the configured folder list.
func (c *Config) Folders() []string {
	var folders []string
	for _, f := range strings.Split(c.EmailFolders, ",") {
		if f = strings.TrimSpace(f); f != "" {
			folders = append(folders, f)
		}
	}
	if len(folders) == 0 {
		folders = []string{"INBOX"}
	}
	return folders
}

// NotifierEnabled returns true if the proof notifier is configured
func (c *Config) NotifierEnabled() bool {
	return c.NotifierBaseURL != "" && c.NotifierUserID != "" && c.NotifierAPIKey != ""
}

// ObjectStoreEnabled returns true if the proof object store is configured
func (c *Config) ObjectStoreEnabled() bool {
	return c.ObjectStoreURL != ""
}

// TelegramEnabled returns true if ops alerts are configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.PollInterval < 10*time.Second {
		return nil, fmt.Errorf("POLL_INTERVAL must be at least 10s, got %s", cfg.PollInterval)
	}

	return cfg, nil
}
