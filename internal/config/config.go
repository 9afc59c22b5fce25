// Package config provides configuration management for the nimbus client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/ini.v1"

	"github.com/nimbusdrive/nimbus-cli/internal/constants"
)

// Config holds the resolved client configuration. Values are resolved in
// priority order: explicit flags, environment variables, the config file,
// then built-in defaults.
//
// Config file location: ~/.config/nimbus/config
//
// INI format:
//
//	[nimbus]
//	api_url = https://api.nimbusdrive.io
//	callback_url = http://localhost:8519/callback
//
//	[nimbus.sync]
//	poll_interval_seconds = 2
//	health_interval_seconds = 10
//
//	[nimbus.upload]
//	concurrency = 4
//
//	[nimbus.proxy]
//	mode = no-proxy
//	host =
//	port = 8080
//	user =
//	no_proxy =
type Config struct {
	// APIBaseURL is the Nimbus service endpoint.
	APIBaseURL string `ini:"api_url"`

	// CallbackURL is the local address the magic-link flow redirects to.
	CallbackURL string `ini:"callback_url"`

	// Sync loop intervals.
	PollInterval   time.Duration `ini:"-"`
	HealthInterval time.Duration `ini:"-"`

	// UploadConcurrency bounds in-flight transfers in a batch.
	UploadConcurrency int `ini:"-"`

	// Proxy settings. Mode is one of "no-proxy", "system", "basic", "ntlm".
	ProxyMode     string `ini:"mode"`
	ProxyHost     string `ini:"host"`
	ProxyPort     int    `ini:"port"`
	ProxyUser     string `ini:"user"`
	ProxyPassword string `ini:"-"` // Never persisted
	NoProxy       string `ini:"no_proxy"`
}

// Validation errors
var (
	ErrMissingAPIURL      = errors.New("api_url is required")
	ErrInvalidInterval    = errors.New("intervals must be positive")
	ErrInvalidConcurrency = errors.New("upload concurrency must be at least 1")
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:        "https://api.nimbusdrive.io",
		CallbackURL:       "http://localhost:8519/callback",
		PollInterval:      constants.DefaultPollInterval,
		HealthInterval:    constants.DefaultHealthInterval,
		UploadConcurrency: constants.DefaultUploadConcurrency,
		ProxyMode:         "no-proxy",
	}
}

// Load resolves configuration from the given file path, overlaying
// environment variables on top. A missing file is not an error; the
// defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := loadFile(cfg, path); err != nil {
				return nil, err
			}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	file, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := file.Section("nimbus").MapTo(cfg); err != nil {
		return fmt.Errorf("failed to parse [nimbus] section: %w", err)
	}

	sync := file.Section("nimbus.sync")
	if v, err := sync.Key("poll_interval_seconds").Int(); err == nil && v > 0 {
		cfg.PollInterval = time.Duration(v) * time.Second
	}
	if v, err := sync.Key("health_interval_seconds").Int(); err == nil && v > 0 {
		cfg.HealthInterval = time.Duration(v) * time.Second
	}

	upload := file.Section("nimbus.upload")
	if v, err := upload.Key("concurrency").Int(); err == nil && v > 0 {
		cfg.UploadConcurrency = v
	}

	if err := file.Section("nimbus.proxy").MapTo(cfg); err != nil {
		return fmt.Errorf("failed to parse [nimbus.proxy] section: %w", err)
	}

	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("NIMBUS_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("NIMBUS_CALLBACK_URL"); v != "" {
		cfg.CallbackURL = v
	}
	if v := os.Getenv("NIMBUS_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("NIMBUS_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.HealthInterval = d
		}
	}
	if v := os.Getenv("NIMBUS_UPLOAD_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.UploadConcurrency = n
		}
	}
	if v := os.Getenv("NIMBUS_PROXY_MODE"); v != "" {
		cfg.ProxyMode = v
	}
	if v := os.Getenv("NIMBUS_PROXY_PASSWORD"); v != "" {
		cfg.ProxyPassword = v
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return ErrMissingAPIURL
	}
	if c.PollInterval <= 0 || c.HealthInterval <= 0 {
		return ErrInvalidInterval
	}
	if c.UploadConcurrency < 1 {
		return ErrInvalidConcurrency
	}
	switch strings.ToLower(c.ProxyMode) {
	case "", "no-proxy", "system", "basic", "ntlm":
	default:
		return fmt.Errorf("unsupported proxy mode: %s", c.ProxyMode)
	}
	return nil
}

// Save writes the configuration back to the given path, creating parent
// directories as needed. The proxy password is never written.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file := ini.Empty()

	sec := file.Section("nimbus")
	sec.Key("api_url").SetValue(c.APIBaseURL)
	sec.Key("callback_url").SetValue(c.CallbackURL)

	sync := file.Section("nimbus.sync")
	sync.Key("poll_interval_seconds").SetValue(strconv.Itoa(int(c.PollInterval / time.Second)))
	sync.Key("health_interval_seconds").SetValue(strconv.Itoa(int(c.HealthInterval / time.Second)))

	upload := file.Section("nimbus.upload")
	upload.Key("concurrency").SetValue(strconv.Itoa(c.UploadConcurrency))

	proxy := file.Section("nimbus.proxy")
	proxy.Key("mode").SetValue(c.ProxyMode)
	proxy.Key("host").SetValue(c.ProxyHost)
	proxy.Key("port").SetValue(strconv.Itoa(c.ProxyPort))
	proxy.Key("user").SetValue(c.ProxyUser)
	proxy.Key("no_proxy").SetValue(c.NoProxy)

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config to %s: %w", path, err)
	}
	return nil
}
