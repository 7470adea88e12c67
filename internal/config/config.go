package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Store drivers.
const (
	DriverDynamoDB = "dynamodb"
	DriverMemory   = "memory"
)

const defaultJWTSecret = "default_secret_CHANGE_ME"

type Config struct {
	Env      string
	LogLevel string
	Port     string
	RunLocal bool

	StoreDriver string

	// AWS
	AWSRegion          string
	AWSEndpoint        string
	RefundRequestTable string
	IdempotencyTable   string
	OrdersTable        string
	UsersTable         string
	RefundsTable       string
	EventsQueueURL     string
	MetricsNamespace   string

	// Identity
	JWTSecret string
	JWTIssuer string

	// Behaviour
	IdempotencyTTL  time.Duration
	SummaryCacheTTL time.Duration
	RequestTimeout  time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
}

// LoadConfig reads configuration from the environment. A dotenv file named by
// CONFIG_FILE (or ./.env) is loaded first when present.
func LoadConfig() (*Config, error) {
	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", file, err)
		}
	} else if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded configuration from .env")
	}

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnv("PORT", "8080"),
		RunLocal: getBoolEnv("RUN_LOCAL", false),

		StoreDriver: getEnv("STORE_DRIVER", DriverDynamoDB),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSEndpoint:        getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		RefundRequestTable: getEnv("REFUND_REQUESTS_TABLE", "refund_requests"),
		IdempotencyTable:   getEnv("IDEMPOTENCY_TABLE", "idempotency"),
		OrdersTable:        getEnv("ORDERS_TABLE", "orders"),
		UsersTable:         getEnv("USERS_TABLE", "users"),
		RefundsTable:       getEnv("REFUNDS_TABLE", "refunds"),
		EventsQueueURL:     getEnv("REFUND_EVENTS_QUEUE_URL", ""),
		MetricsNamespace:   getEnv("METRICS_NAMESPACE", "RefundFlow"),

		JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
		JWTIssuer: getEnv("JWT_ISSUER", "storefront"),

		IdempotencyTTL:  getDurationEnv("IDEMPOTENCY_TTL", 48*time.Hour),
		SummaryCacheTTL: getDurationEnv("SUMMARY_CACHE_TTL", 10*time.Minute),
		RequestTimeout:  getDurationEnv("REQUEST_TIMEOUT", 10*time.Second),
		RateLimitRPS:    getFloatEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst:  getIntEnv("RATE_LIMIT_BURST", 40),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverDynamoDB:
		if c.RefundRequestTable == "" || c.IdempotencyTable == "" {
			return errors.New("REFUND_REQUESTS_TABLE and IDEMPOTENCY_TABLE are required for the dynamodb driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWTSecret == defaultJWTSecret && c.Env == "production" {
		return errors.New("JWT_SECRET must be set in production")
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Warn().Str("key", key).Msg("invalid duration, using fallback")
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Warn().Str("key", key).Msg("invalid int, using fallback")
	}
	return fallback
}

func getFloatEnv(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Warn().Str("key", key).Msg("invalid float, using fallback")
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Warn().Str("key", key).Msg("invalid bool, using fallback")
	}
	return fallback
}
