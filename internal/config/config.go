// Package config provides YAML-based configuration loading for Taskrelay.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Taskrelay configuration, loaded from taskrelay.yaml.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Database  DatabaseConfig  `yaml:"database"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Reminders RemindersConfig `yaml:"reminders"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// TelegramConfig holds Bot API credentials. A missing token is a startup
// error, not a per-call no-op.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	APIBase  string `yaml:"api_base"` // override for self-hosted Bot API gateways
}

// DatabaseConfig holds connection settings for the tracker database.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// WebhookConfig holds HTTP server settings for the inbound webhook.
type WebhookConfig struct {
	Port int `yaml:"port"`
	// Secret is appended to the webhook path so only Telegram-originated
	// requests reach the handler. Optional but recommended.
	Secret string `yaml:"secret"`
}

// RemindersConfig tunes the reminder sweep.
type RemindersConfig struct {
	WindowHours []int  `yaml:"window_hours"` // lookahead windows, hours before due
	BandMinutes int    `yaml:"band_minutes"` // half-width of the target band
	SweepCron   string `yaml:"sweep_cron"`   // optional in-process schedule
}

// SummaryConfig tunes the daily admin summary.
type SummaryConfig struct {
	Cron string `yaml:"cron"` // optional in-process schedule
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Database == "" {
		c.Database.Database = "taskrelay"
	}
	if c.Webhook.Port == 0 {
		c.Webhook.Port = 8090
	}
	if len(c.Reminders.WindowHours) == 0 {
		c.Reminders.WindowHours = []int{24, 6}
	}
	if c.Reminders.BandMinutes == 0 {
		c.Reminders.BandMinutes = 30
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Telegram.BotToken == "" {
		errs = append(errs, "telegram.bot_token is required")
	}
	for i, h := range c.Reminders.WindowHours {
		if h <= 0 {
			errs = append(errs, fmt.Sprintf("reminders.window_hours[%d] must be positive", i))
		}
	}
	if c.Reminders.BandMinutes < 0 {
		errs = append(errs, "reminders.band_minutes must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
