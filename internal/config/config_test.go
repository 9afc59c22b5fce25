package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("Load of missing file should not fail: %v", err)
	}
	if cfg.APIBaseURL != "https://api.nimbusdrive.io" {
		t.Errorf("Unexpected default API URL %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("Unexpected default poll interval %s", cfg.PollInterval)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	content := `[nimbus]
api_url = https://staging.nimbusdrive.io
callback_url = http://localhost:9000/cb

[nimbus.sync]
poll_interval_seconds = 5

[nimbus.upload]
concurrency = 8

[nimbus.proxy]
mode = basic
host = proxy.corp
port = 3128
user = svc
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIBaseURL != "https://staging.nimbusdrive.io" {
		t.Errorf("Unexpected API URL %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("Expected 5s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.HealthInterval != 10*time.Second {
		t.Errorf("Unset keys keep defaults, got %s", cfg.HealthInterval)
	}
	if cfg.UploadConcurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", cfg.UploadConcurrency)
	}
	if cfg.ProxyMode != "basic" || cfg.ProxyHost != "proxy.corp" || cfg.ProxyPort != 3128 {
		t.Errorf("Unexpected proxy settings: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	if err := os.WriteFile(path, []byte("[nimbus]\napi_url = https://file.example.com\n"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("NIMBUS_API_URL", "https://env.example.com")
	t.Setenv("NIMBUS_POLL_INTERVAL", "7s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIBaseURL != "https://env.example.com" {
		t.Errorf("Environment should override the file, got %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 7*time.Second {
		t.Errorf("Expected 7s from env, got %s", cfg.PollInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.APIBaseURL = "  "
	if err := cfg.Validate(); err != ErrMissingAPIURL {
		t.Errorf("Expected ErrMissingAPIURL, got %v", err)
	}

	cfg = Default()
	cfg.PollInterval = 0
	if err := cfg.Validate(); err != ErrInvalidInterval {
		t.Errorf("Expected ErrInvalidInterval, got %v", err)
	}

	cfg = Default()
	cfg.ProxyMode = "socks5"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for unsupported proxy mode")
	}
}

func TestSaveRoundTripOmitsPassword(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config")

	cfg := Default()
	cfg.APIBaseURL = "https://saved.example.com"
	cfg.ProxyMode = "ntlm"
	cfg.ProxyHost = "proxy.corp"
	cfg.ProxyPassword = "secret"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) == "" {
		t.Fatal("Empty config file")
	}
	lower := strings.ToLower(string(raw))
	for _, forbidden := range []string{"secret", "password"} {
		if strings.Contains(lower, forbidden) {
			t.Errorf("Saved config must not contain %q", forbidden)
		}
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load of saved config failed: %v", err)
	}
	if loaded.APIBaseURL != "https://saved.example.com" {
		t.Errorf("Round trip lost API URL, got %q", loaded.APIBaseURL)
	}
	if loaded.ProxyMode != "ntlm" || loaded.ProxyHost != "proxy.corp" {
		t.Errorf("Round trip lost proxy settings: %+v", loaded)
	}
	if loaded.ProxyPassword != "" {
		t.Error("Password must not survive a round trip")
	}
}
