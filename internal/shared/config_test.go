package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()
		if config.Database.Path != "./trueshuffle.db" {
			t.Errorf("expected database path ./trueshuffle.db, got %s", config.Database.Path)
		}
		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}
		if got := config.Server.ControlAddr(); got != "127.0.0.1:3001" {
			t.Errorf("expected control address 127.0.0.1:3001, got %s", got)
		}
		if config.Controller.PollInterval.Duration != 3*time.Second {
			t.Errorf("expected poll interval 3s, got %v", config.Controller.PollInterval)
		}
		if config.Controller.BufferSize != 5 {
			t.Errorf("expected buffer size 5, got %d", config.Controller.BufferSize)
		}
		if config.Transport.BackoffBase.Duration != 500*time.Millisecond {
			t.Errorf("expected backoff base 500ms, got %v", config.Transport.BackoffBase)
		}
		if config.Shuffle.MaxAttempts != 5 {
			t.Errorf("expected shuffle max attempts 5, got %d", config.Shuffle.MaxAttempts)
		}
		if err := config.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}
		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[database]
path = "/custom/path.db"

[controller]
backend = "mpd"
poll_interval = "1500ms"
buffer_size = 2

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"

[mpd]
address = "music.local:6600"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}
		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}
		if config.Controller.Backend != "mpd" {
			t.Errorf("expected mpd backend, got %s", config.Controller.Backend)
		}
		if config.Controller.PollInterval.Duration != 1500*time.Millisecond {
			t.Errorf("expected 1.5s poll interval, got %v", config.Controller.PollInterval)
		}
		if config.Transport.MaxAttempts != 3 {
			t.Errorf("expected untouched max attempts to keep default 3, got %d", config.Transport.MaxAttempts)
		}
		if config.MPD.Address != "music.local:6600" {
			t.Errorf("expected mpd address music.local:6600, got %s", config.MPD.Address)
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		tt := []struct {
			name string
			body string
		}{
			{name: "bad duration", body: "[controller]\npoll_interval = \"soon\"\n"},
			{name: "unknown backend", body: "[controller]\nbackend = \"cassette\"\n"},
			{name: "zero buffer", body: "[controller]\nbuffer_size = 0\n"},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				if err := os.WriteFile(configPath, []byte(tc.body), 0644); err != nil {
					t.Fatalf("failed to write test config: %v", err)
				}

				if _, err := LoadConfig(configPath); err == nil {
					t.Error("expected error for invalid config")
				}
			})
		}
	})

	t.Run("Missing", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "absent.toml")
		if _, err := LoadConfig(configPath); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Duration", func(t *testing.T) {
		var d Duration
		if err := d.UnmarshalText([]byte("2m")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.Duration != 2*time.Minute {
			t.Errorf("expected 2m, got %v", d.Duration)
		}

		err := d.UnmarshalText([]byte("forever"))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
