package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel string

	CityDBPath          string
	DefaultSearchRadius float64
	NearbyRadiusMiles   float64

	PurchaseMaxAttempts int
	PurchaseBaseDelay   time.Duration

	RateLimitWindow time.Duration
	RateLimitSweep  time.Duration
	BrandConfigPath string
	Brand           string

	NotifyWebhookURL  string
	TelegramBotToken  string
	TelegramChatID    int64
	NotifyConcurrency int
	NotifyIntervalMs  int
	NotifyMaxRetries  int
	DashboardURL      string

	MatchExportPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "leadmarket"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "leadmarket"),
		PostgresDB:       getEnv("POSTGRES_DB", "leadmarket"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		CityDBPath:          getEnv("CITY_DB_PATH", "./data/cities.csv"),
		DefaultSearchRadius: getEnvFloat("DEFAULT_SEARCH_RADIUS", 25),
		NearbyRadiusMiles:   getEnvFloat("NEARBY_RADIUS_MILES", 30),

		PurchaseMaxAttempts: getEnvInt("PURCHASE_MAX_ATTEMPTS", 3),
		PurchaseBaseDelay:   time.Duration(getEnvInt("PURCHASE_BASE_DELAY_MS", 50)) * time.Millisecond,

		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Hour),
		RateLimitSweep:  getEnvDuration("RATE_LIMIT_SWEEP", 5*time.Minute),
		BrandConfigPath: getEnv("BRAND_CONFIG_PATH", ""),
		Brand:           getEnv("BRAND", "ownerfi"),

		NotifyWebhookURL:  getEnv("NOTIFY_WEBHOOK_URL", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
		NotifyConcurrency: getEnvInt("NOTIFY_CONCURRENCY", 3),
		NotifyIntervalMs:  getEnvInt("NOTIFY_INTERVAL_MS", 200),
		NotifyMaxRetries:  getEnvInt("NOTIFY_MAX_RETRIES", 2),
		DashboardURL:      getEnv("DASHBOARD_URL", "http://localhost:3000/dashboard"),

		MatchExportPath: getEnv("MATCH_EXPORT_PATH", ""),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// MigrateURL returns the URL form golang-migrate expects.
func (c *Config) MigrateURL() string {
	return "postgres://" + c.PostgresUser + ":" + c.PostgresPassword +
		"@" + c.PostgresHost + ":" + c.PostgresPort +
		"/" + c.PostgresDB + "?sslmode=" + c.PostgresSSLMode
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

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
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
