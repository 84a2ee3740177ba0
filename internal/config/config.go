package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Client   ClientConfig
	Server   ServerConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
	Auth     AuthConfig
	LogLevel string
}

// ClientConfig configures the board API client and its socket.
type ClientConfig struct {
	APIRoot   string
	SocketURL string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables
	Burst     int
	// TokenStore selects where the API token is persisted: file, redis or memory.
	TokenStore string
	TokenFile  string
}

// ServerConfig configures the watercooler relay.
type ServerConfig struct {
	Host         string
	Port         int
	Debug        bool
	AllowedHosts []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	ConnectRPS   int
}

type RedisConfig struct {
	Enabled      bool
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/taskboard")

	setDefaults(v)

	// TASKBOARD_AUTH_JWTSECRET sets auth.jwtsecret
	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Client defaults
	v.SetDefault("client.apiroot", "http://localhost:8000/api/")
	v.SetDefault("client.socketurl", "ws://localhost:8080")
	v.SetDefault("client.timeout", 30*time.Second)
	v.SetDefault("client.ratelimit", 0.0)
	v.SetDefault("client.burst", 10)
	v.SetDefault("client.tokenstore", "file")
	v.SetDefault("client.tokenfile", defaultTokenFile())

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.allowedhosts", []string{"localhost:8080"})
	v.SetDefault("server.readtimeout", 30*time.Second)
	v.SetDefault("server.writetimeout", 30*time.Second)
	v.SetDefault("server.idletimeout", 120*time.Second)
	v.SetDefault("server.connectrps", 10)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.minidleconns", 2)
	v.SetDefault("redis.maxretries", 3)
	v.SetDefault("redis.dialtimeout", 5*time.Second)
	v.SetDefault("redis.readtimeout", 3*time.Second)
	v.SetDefault("redis.writetimeout", 3*time.Second)
	v.SetDefault("redis.keyprefix", "taskboard")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwtsecret", "")

	v.SetDefault("loglevel", "info")
}

// defaultTokenFile mirrors browser local storage: one small per-user file.
func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".taskboard-token.toml"
	}
	return filepath.Join(dir, "taskboard", "token.toml")
}
