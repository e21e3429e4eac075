package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eng540/CapitalGuard-Pro-v2-sub000/pkg/crypto"
)

// Config holds the full process configuration, assembled from environment
// variables at boot.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Exchange   ExchangeConfig
	Aggregator AggregatorConfig
	Trigger    TriggerIndexConfig
	Evaluator  EvaluatorConfig
	Lifecycle  LifecycleConfig
	Notifier   NotifierConfig
	Logging    LoggingConfig
}

// ServerConfig controls the ops HTTP surface (/healthz, /metrics) and the
// authenticated webhook that the out-of-scope parsing/bot-UI boundary calls
// into the Creation Service through.
type ServerConfig struct {
	Port              int
	Host              string
	WebhookSecretHash string
}

// StoreConfig configures the Postgres connection used for all authoritative state.
type StoreConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// AdapterConfig is the per-source configuration for one Exchange Adapter.
type AdapterConfig struct {
	Source       string
	Enabled      bool
	WSURL        string
	PriceCacheTTL time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

// ExchangeConfig aggregates every adapter this process connects to.
type ExchangeConfig struct {
	Adapters []AdapterConfig
}

// AggregatorConfig controls the Price Aggregator's symbol-set reconciliation.
type AggregatorConfig struct {
	ReconcileInterval time.Duration
	TickBufferSize    int
}

// TriggerIndexConfig controls rebuild cadence and retry backoff for the
// in-memory trigger index.
type TriggerIndexConfig struct {
	RebuildInterval  time.Duration
	RebuildBackoffMin time.Duration
	RebuildBackoffMax time.Duration
}

// EvaluatorConfig controls debounce behavior for repeated ticks against the
// same trigger.
type EvaluatorConfig struct {
	DebounceWindow time.Duration
}

// LifecycleConfig controls optional lifecycle behaviors.
type LifecycleConfig struct {
	ProfitStopEnabled   bool
	BreakEvenBufferBPS  decimal.Decimal
}

// NotifierConfig configures the outbound notification adapter.
type NotifierConfig struct {
	BaseURL           string
	BotToken          string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, applying the defaults
// below for anything unset, and validates the fields that would otherwise
// fail confusingly deep inside a running process.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvAsInt("SERVER_PORT", 8080),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		// WebhookSecretHash is derived below, once CREATION_WEBHOOK_SECRET is validated.
		Store: StoreConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "signalengine"),
			User:     getEnv("DB_USER", "signalengine"),
			Password: getEnv("DB_PASSWORD", ""),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Exchange: ExchangeConfig{
			Adapters: []AdapterConfig{
				{
					Source:        "BINANCE",
					Enabled:       getEnvAsBool("BINANCE_ENABLED", true),
					WSURL:         getEnv("BINANCE_WS_URL", "wss://stream.binance.com:9443/ws"),
					PriceCacheTTL: getEnvAsDuration("BINANCE_PRICE_CACHE_TTL", 30*time.Second),
					BackoffBase:   getEnvAsDuration("BINANCE_BACKOFF_BASE", 1*time.Second),
					BackoffCap:    getEnvAsDuration("BINANCE_BACKOFF_CAP", 30*time.Second),
				},
				{
					Source:        "BYBIT",
					Enabled:       getEnvAsBool("BYBIT_ENABLED", true),
					WSURL:         getEnv("BYBIT_WS_URL", "wss://stream.bybit.com/v5/public/linear"),
					PriceCacheTTL: getEnvAsDuration("BYBIT_PRICE_CACHE_TTL", 60*time.Second),
					BackoffBase:   getEnvAsDuration("BYBIT_BACKOFF_BASE", 1*time.Second),
					BackoffCap:    getEnvAsDuration("BYBIT_BACKOFF_CAP", 30*time.Second),
				},
			},
		},
		Aggregator: AggregatorConfig{
			ReconcileInterval: getEnvAsDuration("AGGREGATOR_RECONCILE_INTERVAL", 60*time.Second),
			TickBufferSize:    getEnvAsInt("AGGREGATOR_TICK_BUFFER_SIZE", 256),
		},
		Trigger: TriggerIndexConfig{
			RebuildInterval:   getEnvAsDuration("TRIGGER_REBUILD_INTERVAL", 300*time.Second),
			RebuildBackoffMin: getEnvAsDuration("TRIGGER_REBUILD_BACKOFF_MIN", 5*time.Second),
			RebuildBackoffMax: getEnvAsDuration("TRIGGER_REBUILD_BACKOFF_MAX", 60*time.Second),
		},
		Evaluator: EvaluatorConfig{
			DebounceWindow: getEnvAsDuration("EVALUATOR_DEBOUNCE_WINDOW", 1*time.Second),
		},
		Lifecycle: LifecycleConfig{
			ProfitStopEnabled:  getEnvAsBool("PROFIT_STOP_ENABLED", true),
			BreakEvenBufferBPS: getEnvAsDecimal("BREAKEVEN_BUFFER_BPS", "5"),
		},
		Notifier: NotifierConfig{
			BaseURL:           getEnv("NOTIFIER_BASE_URL", ""),
			BotToken:          getEnv("NOTIFIER_BOT_TOKEN", ""),
			RequestsPerSecond: getEnvAsFloat("NOTIFIER_RATE_LIMIT_RPS", 5.0),
			Burst:             getEnvAsInt("NOTIFIER_RATE_LIMIT_BURST", 10),
			Timeout:           getEnvAsDuration("NOTIFIER_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Store.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Notifier.BaseURL == "" {
		return nil, fmt.Errorf("NOTIFIER_BASE_URL is required")
	}

	webhookSecret := getEnv("CREATION_WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		return nil, fmt.Errorf("CREATION_WEBHOOK_SECRET is required")
	}
	hash, err := crypto.HashPassword(webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("hashing CREATION_WEBHOOK_SECRET: %w", err)
	}
	cfg.Server.WebhookSecretHash = hash

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key, defaultValue string) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		value, _ = decimal.NewFromString(defaultValue)
	}
	return value
}
