package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config contains runtime configuration for dearie.
// Credentials are never read from the YAML file; they come from the
// environment (TELEGRAM_BOT_TOKEN, OPENAI_API_KEY, REDIS_ADDR).
type Config struct {
	ServerName string `yaml:"server_name"`
	DBPath     string `yaml:"db_path"`
	LogLevel   string `yaml:"log_level"`

	ListenAddr  string `yaml:"listen_addr"`
	WebhookURL  string `yaml:"webhook_url"`
	WebhookPath string `yaml:"webhook_path"`

	TelegramToken   string `yaml:"-"`
	TelegramBaseURL string `yaml:"telegram_base_url"`

	OracleBaseURL        string `yaml:"oracle_base_url"`
	OracleModel          string `yaml:"oracle_model"`
	OracleAPIKey         string `yaml:"-"`
	OracleTimeoutSeconds int    `yaml:"oracle_timeout_seconds"`

	RedisAddr        string `yaml:"-"`
	DedupTTLSeconds  int    `yaml:"dedup_ttl_seconds"`
	HistoryLimit     int    `yaml:"history_limit"`
	EmotionLookback  int    `yaml:"emotion_lookback"`
	IdleCutoffHours  int    `yaml:"idle_cutoff_hours"`
	SweepIntervalSec int    `yaml:"sweep_interval_seconds"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:           "dearie",
		DBPath:               filepath.Join(userHomeDir(), ".dearie", "dearie.db"),
		LogLevel:             "info",
		ListenAddr:           ":8080",
		WebhookPath:          "/telegram/webhook",
		TelegramBaseURL:      "https://api.telegram.org",
		OracleBaseURL:        "https://api.openai.com/v1",
		OracleModel:          "gpt-4o-mini",
		OracleTimeoutSeconds: 30,
		DedupTTLSeconds:      600,
		HistoryLimit:         20,
		EmotionLookback:      10,
		IdleCutoffHours:      72,
		SweepIntervalSec:     300,
	}
}

// Load loads config from disk; if path does not exist, default config is
// returned. Environment credentials are overlaid afterwards in both cases.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.OracleAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks configuration sanity. Credentials are checked at the
// point of use, not here, so offline subcommands keep working.
func (c *Config) Validate() error {
	if c.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("db_path must not be empty")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		return errors.New("webhook_path must start with /")
	}
	if c.OracleTimeoutSeconds <= 0 {
		return errors.New("oracle_timeout_seconds must be > 0")
	}
	if c.HistoryLimit <= 0 {
		return errors.New("history_limit must be > 0")
	}
	if c.EmotionLookback <= 0 {
		return errors.New("emotion_lookback must be > 0")
	}
	if c.IdleCutoffHours <= 0 {
		return errors.New("idle_cutoff_hours must be > 0")
	}
	if c.SweepIntervalSec <= 0 {
		return errors.New("sweep_interval_seconds must be > 0")
	}
	if c.DedupTTLSeconds <= 0 {
		return errors.New("dedup_ttl_seconds must be > 0")
	}
	return nil
}

// EnsurePaths creates parent directories for config-managed paths.
func (c *Config) EnsurePaths() error {
	c.DBPath = ExpandPath(c.DBPath)
	parent := filepath.Dir(c.DBPath)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create db parent dir: %w", err)
	}
	return nil
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
