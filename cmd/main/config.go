package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/CTAG07/kgram/pkg/markov"
	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP API and storage.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`
}

// ModelConfig holds defaults and limits for model operations.
type ModelConfig struct {
	DefaultOrder  int    `json:"default_order"`
	DefaultLength int    `json:"default_length"`
	MaxLength     int    `json:"max_length"`
	Unknown       string `json:"unknown"` // Informational only, the marker is fixed
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Model  *ModelConfig  `json:"model_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7278",
		LogLevel:     "info",
		DatabasePath: "./data/kgram.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		DefaultOrder:  4,
		DefaultLength: 200,
		MaxLength:     10000,
		Unknown:       string(markov.Unknown),
	}
}

// DefaultConfig returns a complete configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: DefaultServerConfig(),
		Model:  DefaultModelConfig(),
	}
}

// Level maps the configured log level string to a slog.Level, defaulting to info.
func (c *ServerConfig) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate reports configuration values no command could work with.
func (c *Config) Validate() error {
	if c.Server == nil || c.Model == nil {
		return fmt.Errorf("server_config and model_config are required")
	}
	if c.Server.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.Model.DefaultOrder <= 0 {
		return fmt.Errorf("default_order must be positive, got %d", c.Model.DefaultOrder)
	}
	if c.Model.MaxLength <= 0 {
		return fmt.Errorf("max_length must be positive, got %d", c.Model.MaxLength)
	}
	if c.Model.DefaultLength < 0 || c.Model.DefaultLength > c.Model.MaxLength {
		return fmt.Errorf("default_length must be between 0 and max_length, got %d", c.Model.DefaultLength)
	}
	return nil
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// Warn instead of failing, as the command can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal the JSON from the file into the config struct.
	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Model != nil && !setsDefaultLength(file) {
		config.Model.DefaultLength = min(config.Model.DefaultLength, config.Model.MaxLength)
	}
	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

// setsDefaultLength reports whether the config file names default_length. A
// default left implicit follows a lowered max_length instead of failing validation.
func setsDefaultLength(file []byte) bool {
	var explicit struct {
		Model *struct {
			DefaultLength *int `json:"default_length"`
		} `json:"model_config"`
	}
	if err := json.Unmarshal(file, &explicit); err != nil {
		return false
	}
	return explicit.Model != nil && explicit.Model.DefaultLength != nil
}

// ConfigManager handles thread-safe access to the configuration.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stderr before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger. That's about it.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	model := *cm.config.Model
	return Config{Server: &server, Model: &model}
}

// Update validates the configuration, saves it to disk and makes it current.
// Changes to the listen address or database only apply after a restart.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return fmt.Errorf("configuration rejected: %w", err)
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := json.MarshalIndent(newConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	*cm.config = newConfig
	cm.logger.Info("Configuration updated", slog.String("path", cm.configPath))
	return nil
}
