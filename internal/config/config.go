package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	pkgdb "studysync/pkg/database"
)

// Config is the full coordinator configuration. Values resolve in order:
// struct defaults, then STUDYSYNC_* environment variables, then an
// optional JSON file, which wins.
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Database  DatabaseConfig  `envconfig:"DB" json:"database"`
	WebSocket WebSocketConfig `envconfig:"WS" json:"websocket"`
	Router    RouterConfig    `json:"router"`
	Log       LogConfig       `json:"log"`
}

type HTTPConfig struct {
	Host         string        `default:"0.0.0.0" json:"host"`
	Port         int           `default:"8080" json:"port"`
	ReadTimeout  time.Duration `split_words:"true" default:"30s" json:"-"`
	WriteTimeout time.Duration `split_words:"true" default:"30s" json:"-"`
}

type DatabaseConfig struct {
	Path            string        `default:"./data/studysync.db" json:"path"`
	MaxConnections  int           `split_words:"true" default:"10" json:"max_connections"`
	ConnMaxLifetime time.Duration `split_words:"true" default:"1h" json:"-"`
	ConnMaxIdleTime time.Duration `split_words:"true" default:"10m" json:"-"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `split_words:"true" default:"30s" json:"-"`
	ReadTimeout    time.Duration `split_words:"true" default:"60s" json:"-"`
	SendBufferSize int           `split_words:"true" default:"100" json:"send_buffer_size"`
}

type RouterConfig struct {
	RateLimitPerMinute int `split_words:"true" default:"120" json:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level  string `default:"info" json:"level"`
	Format string `default:"json" json:"format"`
}

// fileConfig mirrors Config for the JSON overlay with durations as
// strings like "30s". Pointer fields distinguish absent from zero.
type fileConfig struct {
	HTTP *struct {
		Host         *string `json:"host"`
		Port         *int    `json:"port"`
		ReadTimeout  *string `json:"read_timeout"`
		WriteTimeout *string `json:"write_timeout"`
	} `json:"http"`
	Database *struct {
		Path            *string `json:"path"`
		MaxConnections  *int    `json:"max_connections"`
		ConnMaxLifetime *string `json:"conn_max_lifetime"`
		ConnMaxIdleTime *string `json:"conn_max_idle_time"`
	} `json:"database"`
	WebSocket *struct {
		PingInterval   *string `json:"ping_interval"`
		ReadTimeout    *string `json:"read_timeout"`
		SendBufferSize *int    `json:"send_buffer_size"`
	} `json:"websocket"`
	Router *struct {
		RateLimitPerMinute *int `json:"rate_limit_per_minute"`
	} `json:"router"`
	Log *struct {
		Level  *string `json:"level"`
		Format *string `json:"format"`
	} `json:"log"`
}

// Load builds the configuration. path may be empty.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("studysync", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if fc.HTTP != nil {
		setString(&c.HTTP.Host, fc.HTTP.Host)
		setInt(&c.HTTP.Port, fc.HTTP.Port)
		if err := setDuration(&c.HTTP.ReadTimeout, fc.HTTP.ReadTimeout); err != nil {
			return err
		}
		if err := setDuration(&c.HTTP.WriteTimeout, fc.HTTP.WriteTimeout); err != nil {
			return err
		}
	}
	if fc.Database != nil {
		setString(&c.Database.Path, fc.Database.Path)
		setInt(&c.Database.MaxConnections, fc.Database.MaxConnections)
		if err := setDuration(&c.Database.ConnMaxLifetime, fc.Database.ConnMaxLifetime); err != nil {
			return err
		}
		if err := setDuration(&c.Database.ConnMaxIdleTime, fc.Database.ConnMaxIdleTime); err != nil {
			return err
		}
	}
	if fc.WebSocket != nil {
		if err := setDuration(&c.WebSocket.PingInterval, fc.WebSocket.PingInterval); err != nil {
			return err
		}
		if err := setDuration(&c.WebSocket.ReadTimeout, fc.WebSocket.ReadTimeout); err != nil {
			return err
		}
		setInt(&c.WebSocket.SendBufferSize, fc.WebSocket.SendBufferSize)
	}
	if fc.Router != nil {
		setInt(&c.Router.RateLimitPerMinute, fc.Router.RateLimitPerMinute)
	}
	if fc.Log != nil {
		setString(&c.Log.Level, fc.Log.Level)
		setString(&c.Log.Format, fc.Log.Format)
	}

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setDuration(dst *time.Duration, src *string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", *src, err)
	}
	*dst = d
	return nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http port %d is out of range", c.HTTP.Port)
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("http timeouts must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 {
		return fmt.Errorf("websocket intervals must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return fmt.Errorf("websocket ping interval must be shorter than the read timeout")
	}
	if c.WebSocket.SendBufferSize <= 0 {
		return fmt.Errorf("websocket send buffer size must be positive")
	}
	if c.Router.RateLimitPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// DatabaseConfig converts to the storage layer's config type.
func (c *Config) DatabaseConfig() *pkgdb.Config {
	return &pkgdb.Config{
		DatabasePath:    c.Database.Path,
		MaxConnections:  c.Database.MaxConnections,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
