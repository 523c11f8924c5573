package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	BackendURL          string `yaml:"backend_url"`
	DefaultModel        string `yaml:"default_model"`
	RequestTimeoutMs    int    `yaml:"request_timeout_ms"`
	AutoReconnect       bool   `yaml:"auto_reconnect"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms"`
	LogFile             string `yaml:"log_file"`
}

func DefaultConfig() Config {
	return Config{
		BackendURL:          "http://127.0.0.1:8733/api/v1/chat",
		RequestTimeoutMs:    30000,
		AutoReconnect:       true,
		ReconnectIntervalMs: 2000,
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return applyEnv(cfg), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg = applyEnv(cfg)
	if cfg.RequestTimeoutMs <= 0 {
		cfg.RequestTimeoutMs = 30000
	}
	if cfg.ReconnectIntervalMs <= 0 {
		cfg.ReconnectIntervalMs = 2000
	}
	cfg.BackendURL = NormalizeBackendURL(cfg.BackendURL)
	return cfg, nil
}

func applyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("DUCKCHAT_BACKEND_URL")); v != "" {
		cfg.BackendURL = NormalizeBackendURL(v)
	}
	if v := strings.TrimSpace(os.Getenv("DUCKCHAT_MODEL")); v != "" {
		cfg.DefaultModel = v
	}
	return cfg
}

// NormalizeBackendURL strips a trailing slash so paths can be joined by
// plain concatenation everywhere else.
func NormalizeBackendURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "duckchat", "config.yml")
}

func DefaultLogPath() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "duckchat", "duckchat.log")
}
