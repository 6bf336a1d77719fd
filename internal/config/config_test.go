package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func TestLoadDefaultsKeepStockCheckFailOpen(t *testing.T) {
	t.Setenv("STOCK_CHECK_FAIL_OPEN", "")
	t.Setenv("FEED_MAX_ITEMS", "")
	t.Setenv("BACKOFFICE_API_URL", "")

	cfg := Load()
	if !cfg.StockCheckFailOpen {
		t.Fatalf("expected fail-open stock check by default")
	}
	if cfg.FeedMaxItems != 4 {
		t.Fatalf("expected feed size 4, got %d", cfg.FeedMaxItems)
	}
	if cfg.APIBaseURL != "http://localhost:8000/api" {
		t.Fatalf("unexpected default API URL %q", cfg.APIBaseURL)
	}
}

func TestLoadRejectsBadNumbersAndTrimsURL(t *testing.T) {
	t.Setenv("BACKOFFICE_API_URL", "https://shop.example/api/")
	t.Setenv("BACKOFFICE_TIMEOUT_SECONDS", "-3")
	t.Setenv("STOCK_CHECK_FAIL_OPEN", "false")
	t.Setenv("FEED_SALES_LIMIT", "abc")

	cfg := Load()
	if cfg.APIBaseURL != "https://shop.example/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.APIBaseURL)
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("expected fallback timeout, got %v", cfg.Timeout())
	}
	if cfg.StockCheckFailOpen {
		t.Fatalf("expected fail-open to be disabled")
	}
	if cfg.FeedSalesLimit != 3 {
		t.Fatalf("expected fallback sales limit, got %d", cfg.FeedSalesLimit)
	}
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	logger := NewLogger(Config{LogLevel: "warn", LogFormat: "json"})
	if logger.GetLevel() != logrus.WarnLevel {
		t.Fatalf("expected warn level, got %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected JSON formatter")
	}
	if NewLogger(Config{LogLevel: "loud"}).GetLevel() != logrus.InfoLevel {
		t.Fatalf("expected info fallback for an unknown level")
	}
}
