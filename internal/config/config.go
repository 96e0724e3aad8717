package config

import (
	"fmt"
	"time"
)

const (
	EngineHTTP = "http"
	EngineRod  = "rod"
)

type Config struct {
	Site          SiteConfig          `yaml:"site"`
	HTTP          HttpConfig          `yaml:"http"`
	Fetch         FetchConfig         `yaml:"fetch"`
	SelectorsFile string              `yaml:"selectors_file"`
	Scrape        ScrapeConfig        `yaml:"scrape"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type SiteConfig struct {
	BaseURL   string `yaml:"base_url"`
	IndexPath string `yaml:"index_path"`
	EventPath string `yaml:"event_path"`
}

type HttpConfig struct {
	UserAgent        string `yaml:"user_agent"`
	RequestTimeoutMS int    `yaml:"request_timeout_ms"`
	MaxConnections   int    `yaml:"max_connections"`
	RetryDelayMS     int    `yaml:"retry_delay_ms"`

	// MaxRetries bounds retries of transient failures; 0 retries forever.
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type FetchConfig struct {
	Engine string    `yaml:"engine"`
	Rod    RodConfig `yaml:"rod"`
}

type RodConfig struct {
	ChromePath   string `yaml:"chrome_path"`
	PageTimeoutS int    `yaml:"page_timeout_s"`
}

type ScrapeConfig struct {
	// IsolateDecks keeps scraping the remaining decks of an event after one of them fails.
	IsolateDecks bool `yaml:"isolate_decks"`
}

type StorageConfig struct {
	CommandTimeoutMS int `yaml:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath       string `yaml:"log_path"`
	LogLevel      string `yaml:"log_level"`
	LogMaxSizeMB  int    `yaml:"log_max_size_mb"`
	LogMaxBackups int    `yaml:"log_max_backups"`
	Progress      bool   `yaml:"progress"`
}

// Default returns the settings used when no config file is given.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "http://mtgtop8.com",
			IndexPath: "/index",
			EventPath: "/event",
		},
		HTTP: HttpConfig{
			UserAgent:        "top8scraper/1.0",
			RequestTimeoutMS: 60000,
			MaxConnections:   100,
			RetryDelayMS:     100,
		},
		Fetch: FetchConfig{
			Engine: EngineHTTP,
			Rod:    RodConfig{PageTimeoutS: 60},
		},
		Storage: StorageConfig{
			CommandTimeoutMS: 30000,
		},
		Observability: ObservabilityConfig{
			LogLevel:      "info",
			LogMaxSizeMB:  50,
			LogMaxBackups: 3,
			Progress:      true,
		},
	}
}

// Validation
func (c *Config) Validate() error {
	if c.Site.BaseURL == "" {
		return fmt.Errorf("site.base_url is required")
	}
	if c.Site.IndexPath == "" {
		return fmt.Errorf("site.index_path is required")
	}
	if c.Site.EventPath == "" {
		return fmt.Errorf("site.event_path is required")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.RequestTimeoutMS <= 0 {
		return fmt.Errorf("http.request_timeout_ms must be > 0")
	}
	if c.HTTP.MaxConnections <= 0 {
		return fmt.Errorf("http.max_connections must be > 0")
	}
	if c.HTTP.RetryDelayMS < 0 {
		return fmt.Errorf("http.retry_delay_ms must be >= 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if c.Fetch.Engine != EngineHTTP && c.Fetch.Engine != EngineRod {
		return fmt.Errorf("fetch.engine must be '%s' or '%s'", EngineHTTP, EngineRod)
	}
	if c.Fetch.Engine == EngineRod && c.Fetch.Rod.PageTimeoutS <= 0 {
		return fmt.Errorf("fetch.rod.page_timeout_s must be > 0")
	}
	if c.Storage.CommandTimeoutMS <= 0 {
		return fmt.Errorf("storage.command_timeout_ms must be > 0")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("observability.log_level is required")
	}
	if c.Observability.LogPath != "" && c.Observability.LogMaxSizeMB <= 0 {
		return fmt.Errorf("observability.log_max_size_mb must be > 0 when log_path is set")
	}
	return nil
}

// Getters
func (c *Config) GetRequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutMS) * time.Millisecond
}

func (c *Config) GetRetryDelay() time.Duration {
	return time.Duration(c.HTTP.RetryDelayMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

func (c *Config) GetRodPageTimeout() time.Duration {
	return time.Duration(c.Fetch.Rod.PageTimeoutS) * time.Second
}
