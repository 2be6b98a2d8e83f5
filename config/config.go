package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Ticket configuration
	TicketSecret string
	TicketGrace  time.Duration

	// Payment provider configuration
	WebhookSecret      string
	ProviderPubNubSub  string
	ProviderPubNubUUID string
	ProviderChannel    string

	// Broadcast (guest live status) configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Rate limit defaults
	ScanMaxAttempts     int
	ScanWindow          time.Duration
	LinkMaxAttempts     int
	LinkWindow          time.Duration
	WebhookMaxAttempts  int
	WebhookWindow       time.Duration
	RateLimitMaxRetries int

	// Delivery configuration
	DeliveryTimeout time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// Tickets
		TicketSecret: getEnv("TICKET_SECRET", ""),
		TicketGrace:  getEnvAsDuration("TICKET_GRACE", "6h"),

		// Payment provider
		WebhookSecret:      getEnv("WEBHOOK_SECRET", ""),
		ProviderPubNubSub:  getEnv("PROVIDER_PUBNUB_SUBKEY", ""),
		ProviderPubNubUUID: getEnv("PROVIDER_PUBNUB_UUID", "guestpass-server"),
		ProviderChannel:    getEnv("PROVIDER_CHANNEL", "bank-payment-notifications"),

		// PubNub broadcast
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Rate limits
		ScanMaxAttempts:     getEnvAsInt("SCAN_MAX_ATTEMPTS", 30),
		ScanWindow:          getEnvAsDuration("SCAN_WINDOW", "1m"),
		LinkMaxAttempts:     getEnvAsInt("LINK_MAX_ATTEMPTS", 3),
		LinkWindow:          getEnvAsDuration("LINK_WINDOW", "15m"),
		WebhookMaxAttempts:  getEnvAsInt("WEBHOOK_MAX_ATTEMPTS", 120),
		WebhookWindow:       getEnvAsDuration("WEBHOOK_WINDOW", "1m"),
		RateLimitMaxRetries: getEnvAsInt("RATELIMIT_MAX_RETRIES", 3),

		// Delivery
		DeliveryTimeout: getEnvAsDuration("DELIVERY_TIMEOUT", "10s"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, fall back to the default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
