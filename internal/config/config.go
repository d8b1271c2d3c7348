// Package config loads and validates the service configuration.
//
// Configuration comes from a YAML file plus the GEMINI_API_KEY environment
// variable. The credential is never read from the file so it cannot end up
// committed alongside one.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cafevoz/cafevoz/pkg/audiodev"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig    `yaml:"server"`
	Audio   audiodev.Config `yaml:"audio"`
	Gemini  GeminiConfig    `yaml:"gemini"`
	Menu    MenuConfig      `yaml:"menu"`
	Logging LoggingConfig   `yaml:"logging"`
}

// ServerConfig covers the HTTP API and the metrics listener.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	MetricsEnabled bool `yaml:"metrics_enabled"`
	MetricsPort    int  `yaml:"metrics_port"`
}

// GeminiConfig selects the remote models. APIKey is filled from the
// environment, not the file.
type GeminiConfig struct {
	APIKey      string `yaml:"-"`
	LiveModel   string `yaml:"live_model"`
	ParserModel string `yaml:"parser_model"`
	TTSModel    string `yaml:"tts_model"`
	Voice       string `yaml:"voice"`
}

// MenuConfig points at the menu file. Empty means the built-in menu.
type MenuConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        "0.0.0.0",
			Port:           8080,
			MetricsEnabled: true,
			MetricsPort:    9091,
		},
		Audio: audiodev.DefaultConfig(),
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Voice:  "Kore",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path, layered over the defaults. An empty
// path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// The file never carries the credential.
	cfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks everything except the API key, which some commands do
// not need.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

// Validate checks the listener settings.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}
	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if s.MetricsEnabled {
		if s.MetricsPort < 1 || s.MetricsPort > 65535 {
			return fmt.Errorf("metrics_port must be between 1 and 65535, got %d", s.MetricsPort)
		}
		if s.MetricsPort == s.Port {
			return fmt.Errorf("metrics_port must differ from port, both are %d", s.Port)
		}
	}
	return nil
}

// Validate checks the logging settings.
func (l *LoggingConfig) Validate() error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	switch l.Format {
	case "text", "json":
	default:
		return fmt.Errorf("format must be 'text' or 'json', got %q", l.Format)
	}
	return nil
}

// ListenAddr returns the HTTP bind address.
func (s *ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// MetricsAddr returns the metrics bind address.
func (s *ServerConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.MetricsPort)
}
