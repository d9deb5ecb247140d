package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Controller  ControllerConfig  `toml:"controller"`
	Transport   TransportConfig   `toml:"transport"`
	Shuffle     ShuffleConfig     `toml:"shuffle"`
	MPD         MPDConfig         `toml:"mpd"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback and run control servers.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	ControlPort int    `toml:"control_port"`
}

// Addr returns the OAuth callback listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ControlAddr returns the run control listen address.
func (s ServerConfig) ControlAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.ControlPort)
}

// ControllerConfig tunes the playback reconciliation loop.
type ControllerConfig struct {
	Backend      string   `toml:"backend"`
	PollInterval Duration `toml:"poll_interval"`
	BufferSize   int      `toml:"buffer_size"`
}

// TransportConfig tunes retries and client-side rate limiting for remote commands.
type TransportConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	BackoffBase    Duration `toml:"backoff_base"`
	BackoffCap     Duration `toml:"backoff_cap"`
	JitterMax      Duration `toml:"jitter_max"`
	RequestTimeout Duration `toml:"request_timeout"`
	RefreshMargin  Duration `toml:"refresh_margin"`
	RateLimit      float64  `toml:"rate_limit"`
	RateBurst      int      `toml:"rate_burst"`
}

// ShuffleConfig controls the reshuffle similarity guard.
type ShuffleConfig struct {
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	SimilarityWindow    int     `toml:"similarity_window"`
	MaxAttempts         int     `toml:"max_attempts"`
}

// MPDConfig points the mpd backend at a Music Player Daemon.
type MPDConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
}

// Duration is a [time.Duration] that decodes from TOML strings such as "3s" or "500ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the controller cannot run with.
func (c *Config) Validate() error {
	switch c.Controller.Backend {
	case "spotify", "mpd":
	default:
		return fmt.Errorf("%w: unknown controller backend %q", ErrInvalidConfig, c.Controller.Backend)
	}
	if c.Controller.PollInterval.Duration <= 0 {
		return fmt.Errorf("%w: poll_interval must be positive", ErrInvalidConfig)
	}
	if c.Controller.BufferSize < 1 {
		return fmt.Errorf("%w: buffer_size must be at least 1", ErrInvalidConfig)
	}
	if c.Transport.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", ErrInvalidConfig)
	}
	if c.Shuffle.MaxAttempts < 1 {
		return fmt.Errorf("%w: shuffle max_attempts must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
