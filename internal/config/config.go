package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Directory DirectoryConfig
	Dispatch  DispatchConfig
	Countdown CountdownConfig
	Events    EventsConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host      string
	Port      int
	RateLimit int
}

type StoreConfig struct {
	Backend string // memory | sqlite
	Path    string
}

type DirectoryConfig struct {
	Backend       string // static | redis
	SeedFile      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Rate is a fraction expressed in basis points (1/100 of a percent).
type Rate int

const FullRate Rate = 10000

// Of returns floor(n * r).
func (r Rate) Of(n int) int {
	return n * int(r) / int(FullRate)
}

func RateFromFloat(f float64) Rate {
	return Rate(math.Round(f * float64(FullRate)))
}

type OutcomeRates struct {
	Delivered Rate
	Failed    Rate
}

type ResponseRates struct {
	Acknowledged Rate
	Callbacks    Rate
	Unsubscribed Rate
}

type DispatchConfig struct {
	Emergency OutcomeRates
	Bulk      OutcomeRates
	Responses ResponseRates
	SMSCost   float64
	IVRCost   float64
	Language  string
}

type CountdownConfig struct {
	Ticks    int
	Interval time.Duration
}

type EventsConfig struct {
	Workers      int
	BufferSize   int
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "localhost"),
			Port:      getEnvInt("SERVER_PORT", 8080),
			RateLimit: getEnvInt("SERVER_RATE_LIMIT", 20),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", "memory"),
			Path:    getEnv("STORE_PATH", ":memory:"),
		},
		Directory: DirectoryConfig{
			Backend:       getEnv("DIRECTORY_BACKEND", "static"),
			SeedFile:      getEnv("DIRECTORY_SEED_FILE", "./data/institutions.yaml"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "institution"),
		},
		Dispatch: DispatchConfig{
			Emergency: OutcomeRates{
				Delivered: RateFromFloat(getEnvFloat("EMERGENCY_DELIVERED_RATE", 0.95)),
				Failed:    RateFromFloat(getEnvFloat("EMERGENCY_FAILED_RATE", 0.03)),
			},
			Bulk: OutcomeRates{
				Delivered: RateFromFloat(getEnvFloat("BULK_DELIVERED_RATE", 0.96)),
				Failed:    RateFromFloat(getEnvFloat("BULK_FAILED_RATE", 0.02)),
			},
			Responses: ResponseRates{
				Acknowledged: RateFromFloat(getEnvFloat("ACK_RATE", 0.70)),
				Callbacks:    RateFromFloat(getEnvFloat("CALLBACK_RATE", 0.05)),
				Unsubscribed: RateFromFloat(getEnvFloat("UNSUBSCRIBE_RATE", 0.01)),
			},
			SMSCost:  getEnvFloat("SMS_UNIT_COST", 0.25),
			IVRCost:  getEnvFloat("IVR_UNIT_COST", 1.50),
			Language: getEnv("DEFAULT_LANGUAGE", "en"),
		},
		Countdown: CountdownConfig{
			Ticks:    getEnvInt("COUNTDOWN_TICKS", 5),
			Interval: getEnvDuration("COUNTDOWN_INTERVAL", time.Second),
		},
		Events: EventsConfig{
			Workers:      getEnvInt("EVENT_WORKERS", 2),
			BufferSize:   getEnvInt("EVENT_BUFFER_SIZE", 100),
			KafkaEnabled: getEnvBool("KAFKA_ENABLED", false),
			KafkaBrokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			KafkaTopic:   getEnv("KAFKA_TOPIC", "emergency-dispatch"),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Host: "localhost", Port: 8080, RateLimit: 20},
		Store:     StoreConfig{Backend: "memory", Path: ":memory:"},
		Directory: DirectoryConfig{Backend: "static", RedisPrefix: "institution"},
		Dispatch: DispatchConfig{
			Emergency: OutcomeRates{Delivered: 9500, Failed: 300},
			Bulk:      OutcomeRates{Delivered: 9600, Failed: 200},
			Responses: ResponseRates{Acknowledged: 7000, Callbacks: 500, Unsubscribed: 100},
			SMSCost:   0.25,
			IVRCost:   1.50,
			Language:  "en",
		},
		Countdown: CountdownConfig{Ticks: 5, Interval: time.Second},
		Events:    EventsConfig{Workers: 2, BufferSize: 100, KafkaTopic: "emergency-dispatch"},
		Logging:   LoggingConfig{Level: "info"},
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 1 {
		return fmt.Errorf("rate limit must be positive: %d", c.Server.RateLimit)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Store.Backend != "memory" && c.Store.Backend != "sqlite" {
		return fmt.Errorf("invalid store backend: %s", c.Store.Backend)
	}
	if c.Directory.Backend != "static" && c.Directory.Backend != "redis" {
		return fmt.Errorf("invalid directory backend: %s", c.Directory.Backend)
	}

	for name, r := range map[string]OutcomeRates{"emergency": c.Dispatch.Emergency, "bulk": c.Dispatch.Bulk} {
		if r.Delivered < 0 || r.Failed < 0 || r.Delivered+r.Failed > FullRate {
			return fmt.Errorf("%s delivered and failed rates must be non-negative and sum to at most 1", name)
		}
	}
	resp := c.Dispatch.Responses
	for _, r := range []Rate{resp.Acknowledged, resp.Callbacks, resp.Unsubscribed} {
		if r < 0 || r > FullRate {
			return fmt.Errorf("response rates must be between 0 and 1")
		}
	}
	if c.Dispatch.SMSCost < 0 || c.Dispatch.IVRCost < 0 {
		return fmt.Errorf("unit costs must not be negative")
	}

	if c.Countdown.Ticks < 1 {
		return fmt.Errorf("countdown ticks must be at least 1")
	}
	if c.Countdown.Interval <= 0 {
		return fmt.Errorf("countdown interval must be positive")
	}

	if c.Events.Workers < 1 {
		return fmt.Errorf("event workers must be at least 1")
	}
	if c.Events.KafkaEnabled && len(c.Events.KafkaBrokers) == 0 {
		return fmt.Errorf("kafka enabled but no brokers configured")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
