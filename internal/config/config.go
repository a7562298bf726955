package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string
	Version     string
	Env         string
	HTTPAddr    string

	Log      LogConfig
	Cart     CartConfig
	Stock    StockConfig
	Bus      BusConfig
	Shipment ShipmentConfig
	Payment  PaymentConfig
	Kafka    KafkaConfig
	Trace    TraceConfig

	// DatabaseURL switches stock and orders to Postgres when set.
	DatabaseURL string
	// RedisURL switches cart replicas and provider intents to Redis when set.
	RedisURL string
}

type LogConfig struct {
	Level string
	File  string
}

type CartConfig struct {
	Streaming        bool
	ControllerChecks bool
}

type StockConfig struct {
	RaiseStockFailed bool
	DefaultInventory int
}

type BusConfig struct {
	Concurrency    int
	HandlerTimeout time.Duration
	MarkCapacity   int
}

type ShipmentConfig struct {
	DeliveryConcurrency int
}

type PaymentConfig struct {
	// ProviderURL points at an external provider; empty serves the built-in one in process.
	ProviderURL    string
	Timeout        time.Duration
	FailPercentage int
	IntentTTL      time.Duration
}

type KafkaConfig struct {
	Brokers     string
	GroupID     string
	TopicPrefix string
}

type TraceConfig struct {
	Endpoint    string
	SampleRatio float64
}

// Load reads an optional .env file from the working directory, then the environment.
// Variables already set in the environment win over the file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		ServiceName: optionalString("SERVICE_NAME", "marketplace"),
		Version:     optionalString("SERVICE_VERSION", "dev"),
		Env:         optionalString("ENV", "dev"),
		HTTPAddr:    optionalString("HTTP_ADDR", ":8080"),
		Log: LogConfig{
			Level: optionalString("LOG_LEVEL", "info"),
			File:  optionalString("LOG_FILE", ""),
		},
		Payment: PaymentConfig{
			ProviderURL: optionalString("PAYMENT_PROVIDER_URL", ""),
		},
		Kafka: KafkaConfig{
			Brokers:     optionalString("KAFKA_BROKERS", ""),
			GroupID:     optionalString("KAFKA_GROUP_ID", "marketplace"),
			TopicPrefix: optionalString("KAFKA_TOPIC_PREFIX", "marketplace"),
		},
		Trace: TraceConfig{
			Endpoint: optionalString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		},
		DatabaseURL: optionalString("DATABASE_URL", ""),
		RedisURL:    optionalString("REDIS_URL", ""),
	}

	var err error
	if cfg.Cart.Streaming, err = optionalBool("STREAMING", true); err != nil {
		return cfg, err
	}
	if cfg.Cart.ControllerChecks, err = optionalBool("CONTROLLER_CHECKS", false); err != nil {
		return cfg, err
	}
	if cfg.Stock.RaiseStockFailed, err = optionalBool("RAISE_STOCK_FAILED", true); err != nil {
		return cfg, err
	}
	if cfg.Stock.DefaultInventory, err = optionalInt("DEFAULT_INVENTORY", 10000); err != nil {
		return cfg, err
	}
	if cfg.Bus.Concurrency, err = optionalInt("BUS_CONCURRENCY", 64); err != nil {
		return cfg, err
	}
	if cfg.Bus.HandlerTimeout, err = optionalDuration("HANDLER_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Bus.MarkCapacity, err = optionalInt("MARK_CAPACITY", 10000); err != nil {
		return cfg, err
	}
	if cfg.Shipment.DeliveryConcurrency, err = optionalInt("DELIVERY_CONCURRENCY", 8); err != nil {
		return cfg, err
	}
	if cfg.Payment.Timeout, err = optionalDuration("PAYMENT_TIMEOUT", 5*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Payment.FailPercentage, err = optionalInt("PAYMENT_FAIL_PERCENTAGE", 0); err != nil {
		return cfg, err
	}
	if cfg.Payment.FailPercentage > 100 {
		return cfg, fmt.Errorf("PAYMENT_FAIL_PERCENTAGE must be <= 100")
	}
	if cfg.Payment.IntentTTL, err = optionalDuration("PAYMENT_INTENT_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.Trace.SampleRatio, err = optionalFloat("OTEL_TRACES_SAMPLER_ARG", 1); err != nil {
		return cfg, err
	}
	if cfg.Trace.SampleRatio > 1 {
		return cfg, fmt.Errorf("OTEL_TRACES_SAMPLER_ARG must be <= 1")
	}
	return cfg, nil
}

func optionalString(name, def string) string {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	return raw
}

func optionalBool(name string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func optionalInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalDuration(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalFloat(name string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
