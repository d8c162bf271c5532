package cmd

import (
	"fmt"
	"time"
)

type HTTPConfig struct {
	Addr               string
	CORSAllowedOrigins []string `mapstructure:"corsAllowedOrigins"`
	CORSAllowedHeaders []string `mapstructure:"corsAllowedHeaders"`
}

type DatastoreConfig struct {
	// Engine is one of "memory", "sqlite", "postgres" or "mysql".
	Engine string
	URI    string

	MaxOpenConns    int           `mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime"`
}

type DeferredConfig struct {
	// Mode is one of "async", "sync" or "disabled".
	Mode    string
	Workers int
}

type LogConfig struct {
	// Format is one of "text" or "json".
	Format string

	// Level is one of "none", "debug", "info", "warn", "error", "panic" or "fatal".
	Level string
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// Config carries everything the run command needs to assemble the service.
type Config struct {
	HTTP      HTTPConfig
	Datastore DatastoreConfig
	Deferred  DeferredConfig
	Log       LogConfig
	Metrics   MetricsConfig
}

func (c *Config) Verify() error {
	switch c.Datastore.Engine {
	case "memory", "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("config 'datastore.engine' must be one of ['memory', 'sqlite', 'postgres', 'mysql']")
	}

	if c.Datastore.Engine != "memory" && c.Datastore.URI == "" {
		return fmt.Errorf("config 'datastore.uri' is required for the '%s' engine", c.Datastore.Engine)
	}

	switch c.Deferred.Mode {
	case "async", "sync", "disabled":
	default:
		return fmt.Errorf("config 'deferred.mode' must be one of ['async', 'sync', 'disabled']")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	switch c.Log.Level {
	case "none", "debug", "info", "warn", "error", "panic", "fatal":
	default:
		return fmt.Errorf("config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']")
	}

	return nil
}

// DefaultConfig is the base for the run command before flags, environment
// variables and config.yaml are layered on top.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:               "0.0.0.0:8080",
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Datastore: DatastoreConfig{
			Engine:          "memory",
			MaxOpenConns:    30,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 0,
			ConnMaxLifetime: 0,
		},
		Deferred: DeferredConfig{
			Mode:    "async",
			Workers: 4,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
	}
}
