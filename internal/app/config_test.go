package app

import (
	"path/filepath"
	"testing"
)

func TestNormalizeBackendURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "trailing slash",
			in:   "http://localhost:8733/api/v1/chat/",
			want: "http://localhost:8733/api/v1/chat",
		},
		{
			name: "surrounding whitespace",
			in:   "  http://localhost:8733 ",
			want: "http://localhost:8733",
		},
		{
			name: "already normal",
			in:   "https://agent.internal/api/v1/chat",
			want: "https://agent.internal/api/v1/chat",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeBackendURL(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizeBackendURL(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.AutoReconnect {
		t.Fatal("DefaultConfig().AutoReconnect = false, want true")
	}
	if cfg.ReconnectIntervalMs != 2000 {
		t.Fatalf("ReconnectIntervalMs = %d, want 2000", cfg.ReconnectIntervalMs)
	}
}

func TestLoadConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	want := DefaultConfig()
	want.BackendURL = "http://backend:9000/api/v1/chat"
	want.DefaultModel = "duck-1"
	if err := SaveConfig(want, path); err != nil {
		t.Fatal(err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.BackendURL != want.BackendURL {
		t.Fatalf("BackendURL = %q, want %q", got.BackendURL, want.BackendURL)
	}
	if got.DefaultModel != "duck-1" {
		t.Fatalf("DefaultModel = %q, want duck-1", got.DefaultModel)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("DUCKCHAT_BACKEND_URL", "http://override:1234/api/v1/chat/")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BackendURL != "http://override:1234/api/v1/chat" {
		t.Fatalf("BackendURL = %q, want env override normalized", cfg.BackendURL)
	}
}
