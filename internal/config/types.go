package config

import "time"

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server" yaml:"server"`
	Backend BackendConfig `koanf:"backend" yaml:"backend"`
	Session SessionConfig `koanf:"session" yaml:"session"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
}

// ServerConfig controls the widget HTTP listener.
type ServerConfig struct {
	Addr           string   `koanf:"addr" yaml:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins" yaml:"allowed_origins"`
}

// BackendConfig points at the servlets.
type BackendConfig struct {
	BaseURL   string        `koanf:"base_url" yaml:"base_url"`
	Timeout   time.Duration `koanf:"timeout" yaml:"timeout"`
	RateLimit float64       `koanf:"rate_limit" yaml:"rate_limit"`
	Burst     int           `koanf:"burst" yaml:"burst"`
}

// MarshalYAML writes durations in their readable form.
func (b BackendConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"base_url":   b.BaseURL,
		"timeout":    b.Timeout.String(),
		"rate_limit": b.RateLimit,
		"burst":      b.Burst,
	}, nil
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Driver        string        `koanf:"driver" yaml:"driver"`
	DSN           string        `koanf:"dsn" yaml:"dsn"`
	TTL           time.Duration `koanf:"ttl" yaml:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval" yaml:"sweep_interval"`
}

// MarshalYAML writes durations in their readable form.
func (s SessionConfig) MarshalYAML() (any, error) {
	return map[string]any{
		"driver":         s.Driver,
		"dsn":            s.DSN,
		"ttl":            s.TTL.String(),
		"sweep_interval": s.SweepInterval.String(),
	}, nil
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:8081/WeatherNow",
			Timeout:   10 * time.Second,
			RateLimit: 5,
			Burst:     10,
		},
		Session: SessionConfig{
			Driver:        "sqlite",
			DSN:           "weathernow.db",
			TTL:           24 * time.Hour,
			SweepInterval: 15 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
