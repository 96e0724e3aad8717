package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath = "TOP8_CONFIG"
	EnvLogLevel   = "TOP8_LOG_LEVEL"
	EnvBaseURL    = "TOP8_BASE_URL"
)

// LoadConfig decodes the YAML file at filePath over Default(), so a file only
// needs the keys it changes.
func LoadConfig(filePath string) (*Config, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv reads the file named by TOP8_CONFIG, or Default() when unset,
// then applies the TOP8_* overrides.
func LoadFromEnv() (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = Default()
	}

	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Observability.LogLevel = level
	}
	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		cfg.Site.BaseURL = strings.TrimRight(base, "/")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}
	return cfg, nil
}
