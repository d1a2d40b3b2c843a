package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	// Pricing
	NightlyRateCents  int64
	FixedDepositCents int64
	Currency          string

	// Payment orchestration
	TransactionCooldown time.Duration
	BalanceLegDelay     time.Duration
	PollInterval        time.Duration
	PollMaxAttempts     int

	// Storage
	StorageMode string // "memory" or "mongo"
	MongoURI    string
	MongoDB     string

	// Events
	KafkaBrokers     []string
	KafkaTopicPrefix string

	// Rails
	PushBaseURL        string
	PushShortcode      string
	HostedBaseURL      string
	HostedSecretKey    string
	HostedCallbackURL  string
	ChainRPCURL        string
	ChainContractAddr  string
	ChainConfirmations int

	MetricsEnabled bool
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:               getEnv("APP_ENV", "dev"),
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		Currency:          getEnv("CURRENCY", "KES"),
		StorageMode:       strings.ToLower(getEnv("STORAGE_MODE", "memory")),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDB:           getEnv("MONGO_DB", "stayvibe"),
		KafkaTopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", ""),
		PushBaseURL:       getEnv("PUSH_BASE_URL", "https://sandbox.safaricom.co.ke"),
		PushShortcode:     getEnv("PUSH_SHORTCODE", "174379"),
		HostedBaseURL:     getEnv("HOSTED_BASE_URL", "https://api.paystack.co"),
		HostedSecretKey:   os.Getenv("HOSTED_SECRET_KEY"),
		HostedCallbackURL: getEnv("HOSTED_CALLBACK_URL", "http://localhost:8080/api/v1/payments/hosted/callback"),
		ChainRPCURL:       getEnv("CHAIN_RPC_URL", "https://rpc-amoy.polygon.technology"),
		ChainContractAddr: os.Getenv("CHAIN_CONTRACT_ADDR"),
	}

	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	var err error
	if cfg.NightlyRateCents, err = parseInt64Env("NIGHTLY_RATE_CENTS", 800); err != nil {
		return Config{}, err
	}
	if cfg.FixedDepositCents, err = parseInt64Env("FIXED_DEPOSIT_CENTS", 500); err != nil {
		return Config{}, err
	}
	if cfg.TransactionCooldown, err = parseDurationEnv("TRANSACTION_COOLDOWN", 10*time.Second); err != nil {
		return Config{}, err
	}
	// Settlement wait before the automatic balance leg of a full payment.
	// Assumed to cover rail finality after deposit confirmation; tune down
	// if the rails confirm faster.
	if cfg.BalanceLegDelay, err = parseDurationEnv("BALANCE_LEG_DELAY", 8*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollInterval, err = parseDurationEnv("POLL_INTERVAL", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PollMaxAttempts, err = parseIntEnv("POLL_MAX_ATTEMPTS", 40); err != nil {
		return Config{}, err
	}
	if cfg.ChainConfirmations, err = parseIntEnv("CHAIN_CONFIRMATIONS", 2); err != nil {
		return Config{}, err
	}
	if cfg.MetricsEnabled, err = parseBoolEnv("METRICS_ENABLED", true); err != nil {
		return Config{}, err
	}

	if cfg.StorageMode == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_MODE=mongo")
	}
	if cfg.NightlyRateCents <= 0 {
		return Config{}, fmt.Errorf("NIGHTLY_RATE_CENTS must be positive")
	}
	if cfg.FixedDepositCents < 0 {
		return Config{}, fmt.Errorf("FIXED_DEPOSIT_CENTS cannot be negative")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseInt64Env(key string, def int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
