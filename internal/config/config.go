package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime settings. Values come from environment variables
// (FINCOACH_ prefix) with sane development defaults, optionally layered over
// a config.yaml in the working directory.
type Config struct {
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`

	LogLevel string `mapstructure:"log_level"`

	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

type DatabaseConfig struct {
	// Engine is "postgres" or "sqlite".
	Engine   string `mapstructure:"engine"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	// Path is the sqlite file when Engine is "sqlite".
	Path string `mapstructure:"path"`
}

func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	// Addr empty means Redis is not used and in-process fallbacks apply.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Models are tried in order until one answers.
	Models         []string      `mapstructure:"models"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CooldownTTL    time.Duration `mapstructure:"cooldown_ttl"`
	// RequestsPerMinute bounds outbound advisor calls.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	Enabled  bool   `mapstructure:"enabled"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type SyncConfig struct {
	// MockDataDir holds the provider snapshot files.
	MockDataDir string `mapstructure:"mock_data_dir"`
	// AutoSyncInterval drives the cron auto-sync of connected sources.
	// Empty disables the job.
	AutoSyncInterval string `mapstructure:"auto_sync_interval"`
}

type DispatchConfig struct {
	TaskTimeout  time.Duration `mapstructure:"task_timeout"`
	QueueSize    int           `mapstructure:"queue_size"`
	IdleQueueTTL time.Duration `mapstructure:"idle_queue_ttl"`
}

// Load reads configuration from the environment and an optional config.yaml.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("env", "development")
	v.SetDefault("port", 8000)
	v.SetDefault("log_level", "info")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "fincoach")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.path", "fincoach.db")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("gemini.models", []string{
		"gemini-2.5-flash",
		"gemini-2.0-flash-exp",
		"gemini-1.5-flash",
		"gemini-1.5-pro",
	})
	v.SetDefault("gemini.request_timeout", 30*time.Second)
	v.SetDefault("gemini.cooldown_ttl", 5*time.Minute)
	v.SetDefault("gemini.requests_per_minute", 12)

	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.enabled", false)

	v.SetDefault("jwt.secret", "dev-secret-change-me")

	v.SetDefault("sync.mock_data_dir", "mock_data")
	v.SetDefault("sync.auto_sync_interval", "")

	v.SetDefault("dispatch.task_timeout", 2*time.Minute)
	v.SetDefault("dispatch.queue_size", 64)
	v.SetDefault("dispatch.idle_queue_ttl", 10*time.Minute)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("FINCOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool { return c.Env == "production" }
