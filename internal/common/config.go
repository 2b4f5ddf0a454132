package common

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Engine EngineConfig
	Store  StoreConfig
	Server ServerConfig
	Tools  ToolsConfig
	Log    LogConfig
}

// EngineConfig holds scheduler defaults
type EngineConfig struct {
	Concurrency int `validate:"gte=1"`
}

// StoreConfig holds history store configuration
type StoreConfig struct {
	Driver           string `validate:"oneof=sqlite postgres"`
	DSN              string `validate:"required"`
	MaxConns         int32  `validate:"gte=1"`
	MinConns         int32  `validate:"gte=0"`
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `validate:"required"`
	HTTPAddr string
}

// ToolsConfig names external binaries backends shell out to
type ToolsConfig struct {
	Pdftoppm string `validate:"required"`
}

// LogConfig selects the slog handler
type LogConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=text json"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.concurrency", runtime.NumCPU())
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "file:docbatch.db?_pragma=busy_timeout(5000)")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("store.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("store.dial_timeout", 3*time.Second)
	v.SetDefault("store.statement_timeout", time.Duration(0))
	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.http_addr", ":8081")
	v.SetDefault("tools.pdftoppm", "pdftoppm")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads defaults, then the optional YAML/TOML/JSON file at path,
// then DOCBATCH_* environment variables (DOCBATCH_STORE_DSN and so on).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DOCBATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, NewAppError("CONFIG_ERROR", fmt.Sprintf("read config file %s", path), err)
		}
	}

	return &Config{
		Engine: EngineConfig{
			Concurrency: v.GetInt("engine.concurrency"),
		},
		Store: StoreConfig{
			Driver:           strings.ToLower(v.GetString("store.driver")),
			DSN:              v.GetString("store.dsn"),
			MaxConns:         v.GetInt32("store.max_conns"),
			MinConns:         v.GetInt32("store.min_conns"),
			MaxConnLifetime:  v.GetDuration("store.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("store.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("store.dial_timeout"),
			StatementTimeout: v.GetDuration("store.statement_timeout"),
		},
		Server: ServerConfig{
			GRPCAddr: v.GetString("server.grpc_addr"),
			HTTPAddr: v.GetString("server.http_addr"),
		},
		Tools: ToolsConfig{
			Pdftoppm: v.GetString("tools.pdftoppm"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
	}, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if err := ValidateStruct(c); err != nil {
		return NewAppError("CONFIG_ERROR", "invalid configuration", err)
	}
	return nil
}
