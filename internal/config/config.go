package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/livefir/livemark/internal/render"
	"github.com/livefir/livemark/internal/validation"
)

const (
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.yaml"

	// DefaultConfigDir is the default directory for livemark configuration
	// This will be ~/.config/livemark/ on Unix systems
	DefaultConfigDir = ".config/livemark"
)

// Config represents the livemark configuration
type Config struct {
	Cache  CacheConfig   `yaml:"cache"`
	Parser ParserConfig  `yaml:"parser"`
	Render render.Config `yaml:"render"`
	Server ServerConfig  `yaml:"server"`
	Stream StreamConfig  `yaml:"stream"`
	Log    LogConfig     `yaml:"log"`
}

// CacheConfig sizes the render cache
type CacheConfig struct {
	// Capacity is the maximum number of cached block artifacts
	Capacity int `yaml:"capacity" validate:"gte=1"`
}

// ParserConfig controls background parsing
type ParserConfig struct {
	// GFM enables GitHub Flavored Markdown extensions
	GFM bool `yaml:"gfm"`

	// Workers bounds concurrently running parses
	Workers int `yaml:"workers" validate:"gte=1,lte=64"`

	// Throttle delays each parse, collapsing bursts of updates
	Throttle time.Duration `yaml:"throttle" validate:"gte=0"`
}

// ServerConfig configures the live preview server
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
}

// StreamConfig controls simulated token streams
type StreamConfig struct {
	// ChunkSize is the number of runes per emitted token
	ChunkSize int `yaml:"chunk_size" validate:"gte=1"`

	// Interval is the delay between tokens
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Cache: CacheConfig{Capacity: 512},
		Parser: ParserConfig{
			GFM:      true,
			Workers:  1,
			Throttle: 0,
		},
		Render: render.DefaultConfig(),
		Server: ServerConfig{Addr: "localhost:8080"},
		Stream: StreamConfig{
			ChunkSize: 4,
			Interval:  20 * time.Millisecond,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, DefaultConfigDir, ConfigFileName), nil
}

// Load reads the configuration at path over the defaults. An empty path
// means the default location; a missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Encode writes the configuration as YAML
func (c *Config) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

// Save writes the configuration to path, creating its directory
func Save(path string, config *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
