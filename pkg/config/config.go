package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/memoryengine/memoryengine/internal/logging"
)

var log = logging.GetLogger("config")

// Config is the complete application configuration, adapted from the
// original config.yaml shape: Setup/License/Terms/Session (product
// onboarding concepts with no Bank analog) are dropped, Qdrant is dropped
// (the embedded vector package replaces it), and BankDefaults is added for
// SPEC_FULL.md's Bank disposition defaults.
type Config struct {
	Profile      string             `mapstructure:"profile"`
	Database     DatabaseConfig     `mapstructure:"database"`
	RestAPI      RestAPIConfig      `mapstructure:"rest_api"`
	Logging      LoggingConfig      `mapstructure:"logging"`
	Ollama       OllamaConfig       `mapstructure:"ollama"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	BankDefaults BankDefaultsConfig `mapstructure:"bank_defaults"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path           string        `mapstructure:"path"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
	MaxBackups     int           `mapstructure:"max_backups"`
	AutoMigrate    bool          `mapstructure:"auto_migrate"`
}

// RestAPIConfig holds the thin HTTP contract adapter's server
// configuration (SPEC_FULL.md §6).
type RestAPIConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	AutoPort bool   `mapstructure:"auto_port"`
	Port     int    `mapstructure:"port"`
	Host     string `mapstructure:"host"`
	CORS     bool   `mapstructure:"cors"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OllamaConfig holds Ollama AI service configuration.
type OllamaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	AutoDetect     bool   `mapstructure:"auto_detect"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingDim   int    `mapstructure:"embedding_dim"`
}

// RateLimitConfig holds the global rate limit settings; per-operation limits
// are not configurable here.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// BankDefaultsConfig holds the default disposition and mission applied to
// a new bank when the caller doesn't override them (SPEC_FULL.md §3).
type BankDefaultsConfig struct {
	Skepticism int    `mapstructure:"skepticism"`
	Literalism int    `mapstructure:"literalism"`
	Empathy    int    `mapstructure:"empathy"`
	Mission    string `mapstructure:"mission"`
}

// DefaultConfig returns configuration with the module's defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".memoryengine")

	return &Config{
		Profile: "default",
		Database: DatabaseConfig{
			Path:           filepath.Join(configDir, "memories.db"),
			BackupInterval: 24 * time.Hour,
			MaxBackups:     7,
			AutoMigrate:    true,
		},
		RestAPI: RestAPIConfig{
			Enabled:  true,
			AutoPort: true,
			Port:     3002,
			Host:     "localhost",
			CORS:     true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ollama: OllamaConfig{
			Enabled:        true,
			AutoDetect:     true,
			BaseURL:        "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			ChatModel:      "qwen2.5:3b",
			EmbeddingDim:   768,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 20,
			BurstSize:         50,
		},
		BankDefaults: BankDefaultsConfig{
			Skepticism: 3,
			Literalism: 3,
			Empathy:    3,
		},
	}
}

// Load loads configuration from YAML (searching ./config.yaml,
// ~/.memoryengine/config.yaml, /etc/memoryengine/config.yaml), overlays a
// .env file if present, and, when a config file was found, watches it via
// fsnotify and logs each change. The returned Config is not updated by the
// watch, so edits take effect on the next Load.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env file", "error", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".memoryengine"))
	v.AddConfigPath("/etc/memoryengine")

	v.SetEnvPrefix("MEMORYENGINE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed, reload required for effect", "file", e.Name)
	})
	v.WatchConfig()

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".memoryengine")

	v.SetDefault("profile", "default")
	v.SetDefault("database.path", filepath.Join(configDir, "memories.db"))
	v.SetDefault("database.backup_interval", "24h")
	v.SetDefault("database.max_backups", 7)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("rest_api.enabled", true)
	v.SetDefault("rest_api.auto_port", true)
	v.SetDefault("rest_api.port", 3002)
	v.SetDefault("rest_api.host", "localhost")
	v.SetDefault("rest_api.cors", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("ollama.enabled", true)
	v.SetDefault("ollama.auto_detect", true)
	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.embedding_model", "nomic-embed-text")
	v.SetDefault("ollama.chat_model", "qwen2.5:3b")
	v.SetDefault("ollama.embedding_dim", 768)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 20)
	v.SetDefault("rate_limit.burst_size", 50)

	v.SetDefault("bank_defaults.skepticism", 3)
	v.SetDefault("bank_defaults.literalism", 3)
	v.SetDefault("bank_defaults.empathy", 3)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.MaxBackups < 0 {
		return fmt.Errorf("database.max_backups must be >= 0")
	}

	if c.RestAPI.Enabled {
		if c.RestAPI.Port < 1 || c.RestAPI.Port > 65535 {
			return fmt.Errorf("rest_api.port must be between 1 and 65535")
		}
		if c.RestAPI.Host == "" {
			return fmt.Errorf("rest_api.host is required when REST API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	if c.Ollama.Enabled && c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required when Ollama is enabled")
	}

	for _, d := range []int{c.BankDefaults.Skepticism, c.BankDefaults.Literalism, c.BankDefaults.Empathy} {
		if d < 1 || d > 5 {
			return fmt.Errorf("bank_defaults disposition values must be between 1 and 5")
		}
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	configDir := filepath.Dir(c.Database.Path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".memoryengine")
}

// DatabasePath returns the default database path.
func DatabasePath() string {
	return filepath.Join(ConfigPath(), "memories.db")
}
