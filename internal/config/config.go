package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Stream transports understood by stream.NewSource.
const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
	TransportAMQP      = "amqp"
	TransportRedis     = "redis"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	API       APIConfig       `mapstructure:"api"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Session   SessionConfig   `mapstructure:"session"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type AppConfig struct {
	Addr            string `mapstructure:"addr"`
	LogLevel        string `mapstructure:"log_level"`
	Environment     string `mapstructure:"environment"`
	BackendGRPCAddr string `mapstructure:"backend_grpc_addr"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StreamConfig struct {
	Transport     string        `mapstructure:"transport"`
	URL           string        `mapstructure:"url"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	NATSURL       string        `mapstructure:"nats_url"`
	AMQPURL       string        `mapstructure:"amqp_url"`
	AMQPExchange  string        `mapstructure:"amqp_exchange"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
}

type SyncConfig struct {
	FallbackInterval       time.Duration `mapstructure:"fallback_interval"`
	PageSize               int           `mapstructure:"page_size"`
	ConversationLimit      int           `mapstructure:"conversation_limit"`
	StopFallbackOnRecovery bool          `mapstructure:"stop_fallback_on_recovery"`
}

type SessionConfig struct {
	CookiePath string `mapstructure:"cookie_path"`
}

type TelemetryConfig struct {
	AMQPURL      string `mapstructure:"amqp_url"`
	Exchange     string `mapstructure:"exchange"`
	RoutingKey   string `mapstructure:"routing_key"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

var defaults = map[string]any{
	"app.addr":                       ":8090",
	"app.log_level":                  "info",
	"app.environment":                "local",
	"app.backend_grpc_addr":          "",
	"api.base_url":                   "http://localhost:8083/api/v1",
	"api.request_timeout":            15 * time.Second,
	"stream.transport":               TransportSSE,
	"stream.url":                     "http://localhost:8083/api/v1/stream",
	"stream.retry_delay":             3 * time.Second,
	"stream.nats_url":                "nats://localhost:4222",
	"stream.amqp_url":                "",
	"stream.amqp_exchange":           "social.events",
	"stream.redis_addr":              "localhost:6379",
	"stream.redis_password":          "",
	"stream.redis_db":                0,
	"sync.fallback_interval":         30 * time.Second,
	"sync.page_size":                 30,
	"sync.conversation_limit":        50,
	"sync.stop_fallback_on_recovery": false,
	"session.cookie_path":            "data/cookies.db",
	"telemetry.amqp_url":             "",
	"telemetry.exchange":             "social.telemetry",
	"telemetry.routing_key":          "sync_events",
	"telemetry.otlp_endpoint":        "",
}

// Load reads configuration from defaults, an optional YAML file and the
// environment. Nested keys map to env vars with dots replaced by
// underscores (stream.transport -> STREAM_TRANSPORT).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Stream.Transport {
	case TransportSSE, TransportWebSocket, TransportNATS, TransportAMQP, TransportRedis:
	default:
		return fmt.Errorf("unknown stream transport %q", c.Stream.Transport)
	}
	if c.Stream.RetryDelay <= 0 {
		return fmt.Errorf("stream retry delay must be positive")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is empty")
	}
	if c.Sync.FallbackInterval <= 0 {
		return fmt.Errorf("fallback interval must be positive")
	}
	if c.Sync.PageSize <= 0 {
		c.Sync.PageSize = 30
	}
	if c.Sync.ConversationLimit <= 0 {
		c.Sync.ConversationLimit = 50
	}
	return nil
}
