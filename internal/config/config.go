package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	LogLevel      slog.Level
	PublicBaseURL string

	NumWorkers        int
	CheckInterval     time.Duration
	CheckConcurrency  int
	PriceLogRetention time.Duration
	JobRetention      time.Duration
	RecoveryGrace     time.Duration
	RecoveryInterval  time.Duration

	NotifyMaxRetries int
	NotifyRetryDelay time.Duration
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	MailFrom         string
	SMTPRateLimit    int

	ScrapeTimeout         time.Duration
	ScrapeMaxRetries      int
	ScrapeUserAgent       string
	ScrapeNameSelector    string
	ScrapePriceSelector   string
	ScrapeImageSelector   string
	ScrapeAvailableText   string
	ScrapeUnavailableText string
}

// Load reads configuration from environment variables. Empty selector and
// user agent values leave the scraper defaults in place.
func Load() (*Config, error) {
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	port := getEnv("PORT", "8080")

	return &Config{
		Port:          port,
		DatabaseURL:   dbURL,
		RedisURL:      redisURL,
		LogLevel:      level,
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:"+port), "/"),

		NumWorkers:        getEnvInt("NUM_WORKERS", 10),
		CheckInterval:     getEnvDuration("CHECK_INTERVAL", 6*time.Hour),
		CheckConcurrency:  getEnvInt("CHECK_CONCURRENCY", 1),
		PriceLogRetention: getEnvDuration("PRICE_LOG_RETENTION", 8760*time.Hour),
		JobRetention:      getEnvDuration("JOB_RETENTION", 8760*time.Hour),
		RecoveryGrace:     getEnvDuration("RECOVERY_GRACE", 30*time.Second),
		RecoveryInterval:  getEnvDuration("RECOVERY_INTERVAL", time.Minute),

		NotifyMaxRetries: getEnvInt("NOTIFY_MAX_RETRIES", 2),
		NotifyRetryDelay: getEnvDuration("NOTIFY_RETRY_DELAY", 60*time.Second),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         getEnvInt("SMTP_PORT", 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),
		MailFrom:         getEnv("MAIL_FROM", "alerts@localhost"),
		SMTPRateLimit:    getEnvInt("SMTP_RATE_LIMIT", 0),

		ScrapeTimeout:         getEnvDuration("SCRAPE_TIMEOUT", 30*time.Second),
		ScrapeMaxRetries:      getEnvInt("SCRAPE_MAX_RETRIES", 3),
		ScrapeUserAgent:       getEnv("SCRAPE_USER_AGENT", ""),
		ScrapeNameSelector:    getEnv("SCRAPE_NAME_SELECTOR", ""),
		ScrapePriceSelector:   getEnv("SCRAPE_PRICE_SELECTOR", ""),
		ScrapeImageSelector:   getEnv("SCRAPE_IMAGE_SELECTOR", ""),
		ScrapeAvailableText:   getEnv("SCRAPE_AVAILABLE_TEXT", ""),
		ScrapeUnavailableText: getEnv("SCRAPE_UNAVAILABLE_TEXT", ""),
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err == nil {
			return d
		}
	}
	return fallback
}
