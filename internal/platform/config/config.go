package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything careergate reads from the environment so main
// stays lean.
type Config struct {
	Addr string

	// Upstream is the opaque backend API the funnel steps call.
	Upstream Upstream

	// PaymentPageURL is the external checkout page the browser is redirected
	// to after an order is created.
	PaymentPageURL string

	Redis     RedisConfig
	RateLimit RateLimit
	Analytics Analytics

	// AdminJWTSigningKey guards the rate-limit admin endpoints.
	AdminJWTSigningKey string
}

// Upstream configures the backend API client.
type Upstream struct {
	BaseURL      string
	DemoEntityID string
	Timeout      time.Duration
}

// RedisConfig configures the optional Redis connection. An empty URL means
// Redis is not configured and the in-memory store is used.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimit bounds resume analyses per client within a rolling window.
// Advisory limits, not a security control.
type RateLimit struct {
	MaxRequests int
	Window      time.Duration
}

// Analytics configures the funnel event sink. Consent gates whether events
// leave the process at all.
type Analytics struct {
	Consent bool
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from environment variables with development
// defaults.
func FromEnv() Config {
	return Config{
		Addr: envString("CAREERGATE_ADDR", ":8080"),
		Upstream: Upstream{
			BaseURL:      envString("UPSTREAM_BASE_URL", "http://localhost:5000/api"),
			DemoEntityID: envString("UPSTREAM_DEMO_ENTITY_ID", "447"),
			Timeout:      envDuration("UPSTREAM_TIMEOUT", 60*time.Second),
		},
		PaymentPageURL: envString("PAYMENT_PAGE_URL", "https://buy.stripe.com/careergate"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimit{
			MaxRequests: envInt("RATE_LIMIT_MAX_REQUESTS", 20),
			Window:      envDuration("RATE_LIMIT_WINDOW", 24*time.Hour),
		},
		Analytics: Analytics{
			Consent: os.Getenv("ANALYTICS_CONSENT") == "true",
			Brokers: envList("KAFKA_BROKERS"),
			Topic:   envString("KAFKA_ANALYTICS_TOPIC", "careergate.funnel.events"),
		},
		AdminJWTSigningKey: envString("ADMIN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
