package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration. It is built once at startup and
// handed to each unit; nothing reads the environment after that.
type Config struct {
	HTTP      HTTPConfig
	Relay     RelayConfig
	MongoDB   MongoDBConfig
	Static    StaticConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
	Log       LogConfig
}

type HTTPConfig struct {
	Host string
	Port string
}

// RelayConfig covers both ends of the relay: the listener bind address and
// the target the gateway sends frames to.
type RelayConfig struct {
	Host        string
	Port        string
	SendHost    string
	SendTimeout time.Duration
}

type MongoDBConfig struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

type StaticConfig struct {
	TemplatesDir string
	StaticDir    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type MetricsConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// HTTPAddr is the gateway bind address.
func (c *Config) HTTPAddr() string { return net.JoinHostPort(c.HTTP.Host, c.HTTP.Port) }

// RelayAddr is the relay listener bind address.
func (c *Config) RelayAddr() string { return net.JoinHostPort(c.Relay.Host, c.Relay.Port) }

// RelaySendAddr is where the gateway dials to deliver frames.
func (c *Config) RelaySendAddr() string { return net.JoinHostPort(c.Relay.SendHost, c.Relay.Port) }

// LoadConfig loads configuration from environment variables and an optional .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("TCP_HOST", "0.0.0.0")
	v.SetDefault("TCP_PORT", "5000")
	v.SetDefault("TCP_SEND_HOST", "127.0.0.1")
	v.SetDefault("TCP_SEND_TIMEOUT", 3)
	v.SetDefault("MONGODB_URI", "mongodb://mongo:27017")
	v.SetDefault("MONGODB_DATABASE", "webchat")
	v.SetDefault("MONGODB_COLLECTION", "messages")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("TEMPLATES_DIR", "templates")
	v.SetDefault("STATIC_DIR", "static")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 10)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)

	cfg := &Config{
		HTTP: HTTPConfig{
			Host: v.GetString("HTTP_HOST"),
			Port: v.GetString("HTTP_PORT"),
		},
		Relay: RelayConfig{
			Host:        v.GetString("TCP_HOST"),
			Port:        v.GetString("TCP_PORT"),
			SendHost:    v.GetString("TCP_SEND_HOST"),
			SendTimeout: time.Duration(v.GetInt("TCP_SEND_TIMEOUT")) * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:        v.GetString("MONGODB_URI"),
			Database:   v.GetString("MONGODB_DATABASE"),
			Collection: v.GetString("MONGODB_COLLECTION"),
			Timeout:    time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Static: StaticConfig{
			TemplatesDir: v.GetString("TEMPLATES_DIR"),
			StaticDir:    v.GetString("STATIC_DIR"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       0,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("METRICS_ADDR"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, port := range map[string]string{"HTTP_PORT": c.HTTP.Port, "TCP_PORT": c.Relay.Port} {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, port, err)
		}
	}
	if c.Relay.SendTimeout <= 0 {
		return fmt.Errorf("TCP_SEND_TIMEOUT must be positive")
	}
	if c.MongoDB.Timeout <= 0 {
		return fmt.Errorf("MONGODB_TIMEOUT must be positive")
	}
	return nil
}
