package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Upstream   UpstreamConfig   `mapstructure:"upstream"`
	Queue      QueueConfig      `mapstructure:"queue"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Context    ContextConfig    `mapstructure:"context"`
	Lookup     LookupConfig     `mapstructure:"lookup"`
	Usage      UsageConfig      `mapstructure:"usage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// UpstreamConfig describes the hosted generation API.
type UpstreamConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	HeaderTimeout   time.Duration `mapstructure:"header_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
}

type QueueConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxRequests int           `mapstructure:"max_requests"`
	Window      time.Duration `mapstructure:"window"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type StorageConfig struct {
	Type  string      `mapstructure:"type"`
	Redis RedisConfig `mapstructure:"redis"`
	Mongo MongoConfig `mapstructure:"mongo"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type ContextConfig struct {
	MaxHistoryTurns          int    `mapstructure:"max_history_turns"`
	DefaultSystemInstruction string `mapstructure:"default_system_instruction"`
}

// LookupConfig configures the weather, time and web search providers.
type LookupConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	GeocodingURL     string        `mapstructure:"geocoding_url"`
	ForecastURL      string        `mapstructure:"forecast_url"`
	DefaultLocation  string        `mapstructure:"default_location"`
	SearchURL        string        `mapstructure:"search_url"`
	SearchAPIKey     string        `mapstructure:"search_api_key"`
	SearchEngineID   string        `mapstructure:"search_engine_id"`
	SearchMaxResults int           `mapstructure:"search_max_results"`
}

type UsageConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string `mapstructure:"default_language"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 10<<20)

	v.SetDefault("upstream.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("upstream.model", "gemini-2.0-flash")
	v.SetDefault("upstream.temperature", 0.7)
	v.SetDefault("upstream.max_output_tokens", 8192)
	v.SetDefault("upstream.header_timeout", 60*time.Second)
	v.SetDefault("upstream.max_retries", 4)
	v.SetDefault("upstream.initial_backoff", time.Second)

	v.SetDefault("queue.concurrency", 3)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("auth.token_ttl", 7*24*time.Hour)

	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("storage.mongo.database", "anything_ai")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("cache.max_size", 5000)

	v.SetDefault("context.max_history_turns", 20)
	v.SetDefault("context.default_system_instruction", "You are Anything AI, a helpful assistant.")

	v.SetDefault("lookup.timeout", 8*time.Second)
	v.SetDefault("lookup.geocoding_url", "https://geocoding-api.open-meteo.com")
	v.SetDefault("lookup.forecast_url", "https://api.open-meteo.com")
	v.SetDefault("lookup.search_url", "https://www.googleapis.com/customsearch/v1")
	v.SetDefault("lookup.search_max_results", 5)

	v.SetDefault("usage.path", "logs/usage.jsonl")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file.path", "logs/server.log")
	v.SetDefault("logging.file.max_size", 100)
	v.SetDefault("logging.file.max_backups", 5)
	v.SetDefault("logging.file.max_age", 30)

	v.SetDefault("monitoring.metrics.enabled", false)
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")

	v.SetDefault("i18n.default_language", "en")
}

// LoadConfig loads configuration from an optional YAML file and environment variables.
// It is read once at process start.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.BindEnv("server.port", "PORT")
	v.BindEnv("upstream.api_key", "GEMINI_API_KEY")
	v.BindEnv("upstream.model", "GEMINI_MODEL")
	v.BindEnv("upstream.base_url", "GEMINI_BASE_URL")
	v.BindEnv("queue.concurrency", "QUEUE_CONCURRENCY")
	v.BindEnv("rate_limit.max_requests", "RATE_LIMIT_MAX")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.mongo.uri", "MONGODB_URI")
	v.BindEnv("storage.mongo.database", "MONGODB_DATABASE")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")
	v.BindEnv("lookup.search_api_key", "SEARCH_API_KEY")
	v.BindEnv("lookup.search_engine_id", "SEARCH_ENGINE_ID")
	v.BindEnv("logging.level", "LOG_LEVEL")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The window is given in milliseconds in the environment
	if windowMS := os.Getenv("RATE_LIMIT_WINDOW_MS"); windowMS != "" {
		d, err := time.ParseDuration(windowMS + "ms")
		if err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW_MS: %w", err)
		}
		config.RateLimit.Window = d
	}

	if redisHost := os.Getenv("REDIS_HOST"); redisHost != "" {
		redisPort := os.Getenv("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		config.Server.CORSOrigins = nil
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				config.Server.CORSOrigins = append(config.Server.CORSOrigins, origin)
			}
		}
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if cfg.Upstream.APIKey == "" {
		return fmt.Errorf("upstream api key is required")
	}
	if cfg.Upstream.Model == "" {
		return fmt.Errorf("upstream model is required")
	}
	if cfg.Queue.Concurrency < 1 {
		return fmt.Errorf("queue concurrency must be at least 1, got %d", cfg.Queue.Concurrency)
	}
	if cfg.RateLimit.MaxRequests <= 0 || cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit requires positive max_requests and window")
	}
	switch cfg.Storage.Type {
	case "memory", "redis", "mongo":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	return nil
}
