// Package config loads service configuration from an optional YAML file.
// Flags in main override file values.
package config

import (
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

type Config struct {
	Addr     string         `yaml:"addr"`
	DBPath   string         `yaml:"db_path"`
	Timezone string         `yaml:"timezone"` // IANA name; empty means UTC
	Debug    bool           `yaml:"debug"`
	Pushover PushoverConfig `yaml:"pushover"`
	AI       AIConfig       `yaml:"ai"`
}

type PushoverConfig struct {
	Token      string  `yaml:"token"`
	UserKey    string  `yaml:"user_key"`
	RatePerSec float64 `yaml:"rate_per_sec"`
}

type AIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	SystemPrompt string `yaml:"system_prompt"`
	MaxTokens    int    `yaml:"max_tokens"`
}

func Default() Config {
	return Config{
		Addr:   ":8080",
		DBPath: "pushflow.db",
	}
}

// Load reads cfg from path; an empty path returns defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Location resolves the configured timezone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}
