package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Chat    ChatConfig    `yaml:"chat"`
	Upload  UploadConfig  `yaml:"upload"`
	History HistoryConfig `yaml:"history"`
	Worker  WorkerConfig  `yaml:"worker"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
	// RateLimitPerMinute caps chat and upload requests per client IP.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// ChatConfig governs how conversations are assembled and sent to a model.
type ChatConfig struct {
	DefaultModel string  `yaml:"default_model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	// MaxHistory bounds how many stored messages are replayed to the model.
	MaxHistory int `yaml:"max_history"`
	// RequestTimeout bounds a single provider call, e.g. "2m".
	RequestTimeout string `yaml:"request_timeout"`
}

// Timeout parses RequestTimeout, falling back to two minutes.
func (c ChatConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

type UploadConfig struct {
	MaxImageBytes int64 `yaml:"max_image_bytes"`
	MaxPDFBytes   int64 `yaml:"max_pdf_bytes"`
	// ImageMaxDimension is the longest allowed edge after normalization.
	ImageMaxDimension int `yaml:"image_max_dimension"`
	JPEGQuality       int `yaml:"jpeg_quality"`
	PDFPreviewLength  int `yaml:"pdf_preview_length"`
}

type HistoryConfig struct {
	DBPath           string `yaml:"db_path"`
	MaxConversations int    `yaml:"max_conversations"`
	RetentionDays    int    `yaml:"retention_days"`
	BackupDir        string `yaml:"backup_dir"`
	// BackupInterval is how often backup and prune run, e.g. "6h".
	BackupInterval string `yaml:"backup_interval"`
	BackupsKept    int    `yaml:"backups_kept"`
}

// Interval parses BackupInterval, falling back to six hours.
func (c HistoryConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.BackupInterval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

type WorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

// Default returns the built-in configuration, used when no config file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:               "8080",
			StaticDir:          "./web/static",
			RateLimitPerMinute: 30,
		},
		Chat: ChatConfig{
			DefaultModel:   "GPT-4o",
			SystemPrompt:   "You are a helpful, friendly AI assistant. Answer clearly and politely.",
			Temperature:    0.7,
			MaxTokens:      1000,
			MaxHistory:     100,
			RequestTimeout: "2m",
		},
		Upload: UploadConfig{
			MaxImageBytes:     10 * 1024 * 1024,
			MaxPDFBytes:       50 * 1024 * 1024,
			ImageMaxDimension: 1024,
			JPEGQuality:       85,
			PDFPreviewLength:  500,
		},
		History: HistoryConfig{
			DBPath:           "./data/chat_history.db",
			MaxConversations: 100,
			RetentionDays:    90,
			BackupDir:        "./data/backups",
			BackupInterval:   "6h",
			BackupsKept:      5,
		},
		Worker: WorkerConfig{
			Count:     3,
			QueueSize: 64,
		},
	}
}

// Load reads the YAML config file (if present) over the defaults, then applies
// environment overrides. API keys are read from the environment by the model
// catalog, never from the YAML file.
func Load(path string) (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	cfg := Default()

	if path == "" {
		path = getEnvOrDefault("CONFIG_PATH", "config.yaml")
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	cfg.Server.Port = getEnvOrDefault("PORT", cfg.Server.Port)
	cfg.History.DBPath = getEnvOrDefault("HISTORY_DB_PATH", cfg.History.DBPath)
	cfg.Chat.DefaultModel = getEnvOrDefault("DEFAULT_MODEL", cfg.Chat.DefaultModel)
	cfg.Worker.Count = getEnvAsIntOrDefault("WORKER_COUNT", cfg.Worker.Count)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.RateLimitPerMinute <= 0 {
		return fmt.Errorf("server.rate_limit_per_minute must be positive, got %d", c.Server.RateLimitPerMinute)
	}
	if c.Chat.MaxTokens <= 0 {
		return fmt.Errorf("chat.max_tokens must be positive, got %d", c.Chat.MaxTokens)
	}
	if c.Chat.MaxHistory <= 0 {
		return fmt.Errorf("chat.max_history must be positive, got %d", c.Chat.MaxHistory)
	}
	if c.Upload.MaxImageBytes <= 0 || c.Upload.MaxPDFBytes <= 0 {
		return fmt.Errorf("upload size limits must be positive")
	}
	if c.Upload.ImageMaxDimension <= 0 {
		return fmt.Errorf("upload.image_max_dimension must be positive, got %d", c.Upload.ImageMaxDimension)
	}
	if c.History.MaxConversations <= 0 {
		return fmt.Errorf("history.max_conversations must be positive, got %d", c.History.MaxConversations)
	}
	if c.History.BackupsKept < 0 {
		return fmt.Errorf("history.backups_kept must not be negative, got %d", c.History.BackupsKept)
	}
	if c.Worker.Count <= 0 {
		return fmt.Errorf("worker.count must be positive, got %d", c.Worker.Count)
	}
	return nil
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
