package websocket

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config configures a Server.
type Config struct {
	Port           int    `yaml:"port"`
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	LogLevel       string `yaml:"log_level"`
}

func DefaultConfig() Config {
	return Config{
		Port:           DefaultPort,
		Path:           "/",
		MaxMessageSize: DefaultMaxMessageSize,
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.Path != "" && !strings.HasPrefix(c.Path, "/") {
		return errors.New("path must start with '/'")
	}
	if c.MaxMessageSize < 0 || uint64(c.MaxMessageSize) > maxPayloadLen {
		return fmt.Errorf("invalid max_message_size %d", c.MaxMessageSize)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Path == "" {
		c.Path = "/"
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	return c
}
