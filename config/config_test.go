package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ViewID != "14346041" {
		t.Errorf("ViewID: got %q, want 14346041", cfg.ViewID)
	}
	if cfg.PageSize != 100000 {
		t.Errorf("PageSize: got %d, want 100000", cfg.PageSize)
	}
	if cfg.EventCategory != "StockEvents" {
		t.Errorf("EventCategory: got %q, want StockEvents", cfg.EventCategory)
	}
	if cfg.PostgresEnabled {
		t.Error("PostgresEnabled should default to false")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VIEW_ID", "999")
	t.Setenv("PAGE_SIZE", "500")
	t.Setenv("RATE_LIMIT_MS", "250")
	t.Setenv("CONTINUE_ON_ERROR", "true")
	t.Setenv("AUTH_MODE", "PROMPT")
	t.Setenv("MAX_RETRIES", "not-a-number")

	cfg := Load()

	if cfg.ViewID != "999" {
		t.Errorf("ViewID: got %q, want 999", cfg.ViewID)
	}
	if cfg.PageSize != 500 {
		t.Errorf("PageSize: got %d, want 500", cfg.PageSize)
	}
	if cfg.RateLimit() != 250*time.Millisecond {
		t.Errorf("RateLimit: got %v, want 250ms", cfg.RateLimit())
	}
	if !cfg.ContinueOnError {
		t.Error("ContinueOnError should be true")
	}
	if cfg.AuthMode != "prompt" {
		t.Errorf("AuthMode: got %q, want prompt", cfg.AuthMode)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: got %d, want fallback 3", cfg.MaxRetries)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"page size", func(c *Config) { c.PageSize = 0 }, "PAGE_SIZE"},
		{"template", func(c *Config) { c.DayEventsTemplate = "day.csv" }, "DAY_EVENTS_TEMPLATE"},
		{"same templates", func(c *Config) { c.HourlyEventsTemplate = c.DayEventsTemplate }, "must differ"},
		{"auth mode", func(c *Config) { c.AuthMode = "magic" }, "AUTH_MODE"},
		{"schedule", func(c *Config) { c.ScheduleAt = "25:99" }, "SCHEDULE_AT"},
		{"retries", func(c *Config) { c.MaxRetries = 0 }, "MAX_RETRIES"},
	}

	for _, tt := range tests {
		cfg := Load()
		tt.mutate(cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: Validate() = nil; want error", tt.name)
			continue
		}
		if !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: Validate() = %v; want mention of %s", tt.name, err, tt.want)
		}
	}
}
