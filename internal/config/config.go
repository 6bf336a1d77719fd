package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	APIBaseURL         string
	TimeoutSeconds     int
	SessionFile        string
	SessionPassphrase  string
	StockCheckFailOpen bool
	FeedMaxItems       int
	FeedSalesLimit     int
	FeedExpensesLimit  int
	FeedInvoicesLimit  int
	DayLabelLocale     string
	Timezone           string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	CatalogTTLSeconds  int
	DatabaseURL        string
	LogLevel           string
	LogFormat          string
}

func Load() Config {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	cfg := Config{
		APIBaseURL:         strings.TrimRight(getEnv("BACKOFFICE_API_URL", "http://localhost:8000/api"), "/"),
		TimeoutSeconds:     getPositiveInt("BACKOFFICE_TIMEOUT_SECONDS", 10),
		SessionFile:        os.Getenv("BACKOFFICE_SESSION_FILE"),
		SessionPassphrase:  strings.TrimSpace(os.Getenv("BACKOFFICE_SESSION_PASSPHRASE")),
		StockCheckFailOpen: getBool("STOCK_CHECK_FAIL_OPEN", true),
		FeedMaxItems:       getPositiveInt("FEED_MAX_ITEMS", 4),
		FeedSalesLimit:     getPositiveInt("FEED_SALES_LIMIT", 3),
		FeedExpensesLimit:  getPositiveInt("FEED_EXPENSES_LIMIT", 2),
		FeedInvoicesLimit:  getPositiveInt("FEED_INVOICES_LIMIT", 2),
		DayLabelLocale:     strings.ToLower(getEnv("DAY_LABEL_LOCALE", "fr")),
		Timezone:           getEnv("BACKOFFICE_TZ", "Local"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            redisDB,
		CatalogTTLSeconds:  getPositiveInt("CATALOG_TTL_SECONDS", 60),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) CatalogTTL() time.Duration {
	return time.Duration(c.CatalogTTLSeconds) * time.Second
}

// Location falls back to time.Local when the zone name is unknown.
func (c Config) Location() *time.Location {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func NewLogger(c Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(c.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getPositiveInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
