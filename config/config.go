package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DatePlaceholder is substituted with the compact report date in file templates.
const DatePlaceholder = "{date}"

// Config holds all application configuration loaded from environment variables.
type Config struct {
	ViewID        string
	EventCategory string
	SamplingLevel string
	PageSize      int

	ClientSecretsPath  string
	TokenCachePath     string
	ServiceAccountFile string
	AuthMode           string
	RedirectURL        string
	ChromeBin          string

	OutputDir            string
	DayEventsTemplate    string
	HourlyEventsTemplate string

	MaxRetries      int
	RateLimitMs     int
	HTTPTimeoutSec  int
	ContinueOnError bool
	LogDebug        bool

	StartDate       string
	ScheduleAt      string
	MetricsTextfile string

	PostgresEnabled  bool
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		ViewID:        getEnv("VIEW_ID", "14346041"),
		EventCategory: getEnv("EVENT_CATEGORY", "StockEvents"),
		SamplingLevel: getEnv("SAMPLING_LEVEL", "LARGE"),
		PageSize:      getEnvInt("PAGE_SIZE", 100000),

		ClientSecretsPath:  getEnv("CLIENT_SECRETS_PATH", "client_secrets.json"),
		TokenCachePath:     getEnv("TOKEN_CACHE_PATH", "analyticsreporting.dat"),
		ServiceAccountFile: getEnv("SERVICE_ACCOUNT_FILE", ""),
		AuthMode:           strings.ToLower(getEnv("AUTH_MODE", "browser")),
		RedirectURL:        getEnv("REDIRECT_URL", "http://localhost:8085/"),
		ChromeBin:          getEnv("CHROME_BIN", ""),

		OutputDir:            getEnv("OUTPUT_DIR", "./output_assets"),
		DayEventsTemplate:    getEnv("DAY_EVENTS_TEMPLATE", DatePlaceholder+"_day_events.csv"),
		HourlyEventsTemplate: getEnv("HOURLY_EVENTS_TEMPLATE", DatePlaceholder+"_hourly_events.csv"),

		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1000),
		HTTPTimeoutSec:  getEnvInt("HTTP_TIMEOUT_SEC", 300),
		ContinueOnError: getEnvBool("CONTINUE_ON_ERROR", false),
		LogDebug:        getEnvBool("LOG_DEBUG", true),

		StartDate:       getEnv("START_DATE", ""),
		ScheduleAt:      getEnv("SCHEDULE_AT", ""),
		MetricsTextfile: getEnv("METRICS_TEXTFILE", ""),

		PostgresEnabled:  getEnvBool("POSTGRES_ENABLED", false),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "analytics"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "analytics"),
		PostgresDB:       getEnv("POSTGRES_DB", "oos_events"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

// Validate reports every setting that would make a run fail later.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.ViewID) == "" {
		errs = append(errs, errors.New("VIEW_ID is required"))
	}
	if strings.TrimSpace(c.EventCategory) == "" {
		errs = append(errs, errors.New("EVENT_CATEGORY is required"))
	}
	if c.PageSize <= 0 {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be positive, got %d", c.PageSize))
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("MAX_RETRIES must be at least 1, got %d", c.MaxRetries))
	}
	if c.RateLimitMs < 0 || c.HTTPTimeoutSec < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_MS and HTTP_TIMEOUT_SEC must not be negative"))
	}
	for key, tpl := range map[string]string{
		"DAY_EVENTS_TEMPLATE":    c.DayEventsTemplate,
		"HOURLY_EVENTS_TEMPLATE": c.HourlyEventsTemplate,
	} {
		if !strings.Contains(tpl, DatePlaceholder) {
			errs = append(errs, fmt.Errorf("%s must contain %s, got %q", key, DatePlaceholder, tpl))
		}
	}
	if c.DayEventsTemplate == c.HourlyEventsTemplate {
		errs = append(errs, errors.New("DAY_EVENTS_TEMPLATE and HOURLY_EVENTS_TEMPLATE must differ"))
	}
	if c.ServiceAccountFile == "" && c.AuthMode != "browser" && c.AuthMode != "prompt" {
		errs = append(errs, fmt.Errorf("AUTH_MODE must be browser or prompt, got %q", c.AuthMode))
	}
	if c.ScheduleAt != "" {
		if _, err := time.Parse("15:04", c.ScheduleAt); err != nil {
			errs = append(errs, fmt.Errorf("SCHEDULE_AT must be HH:MM, got %q", c.ScheduleAt))
		}
	}

	return errors.Join(errs...)
}

// RateLimit returns the minimum interval between API calls.
func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

// HTTPTimeout returns the per-request timeout; zero means none.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
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
		log.Printf("[config] Invalid int for %s=%q, using default %d", key, val, fallback)
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
		log.Printf("[config] Invalid bool for %s=%q, using default %t", key, val, fallback)
	}
	return fallback
}
