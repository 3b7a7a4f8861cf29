package config

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration for the scraper and its API.
type Config struct {
	Environment string
	Debug       bool

	// HTTP API
	APIHost       string
	APIPort       int
	APIRateLimit  int
	APIRateWindow time.Duration

	// Browser
	Headless          bool
	UserAgents        []string
	Locale            string
	Timezone          string
	ScreenshotOnError bool
	ScreenshotDir     string
	UseProxy          bool
	ProxyURL          string

	// Timing
	PageTimeout   time.Duration
	DelayMin      time.Duration
	DelayMax      time.Duration
	WorkerTimeout time.Duration
	JobMaxAge     time.Duration
	MaxRetries    int

	// Jobs
	Workers         int
	RequestsPerHour int
	TempDir         string

	// Cache
	DBDriver      string
	DatabaseURL   string
	CacheTTL      time.Duration
	MemoCacheSize int

	// PostgreSQL
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Logging
	LogLevel string
	LogFile  string
}

// Default returns a Config populated with sensible defaults.
func Default() Config {
	return Config{
		Environment:   "development",
		APIHost:       "0.0.0.0",
		APIPort:       8000,
		APIRateLimit:  10,
		APIRateWindow: time.Minute,

		Headless: true,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
				"(KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Locale:            "fr-FR",
		Timezone:          "Europe/Paris",
		ScreenshotOnError: true,
		ScreenshotDir:     "screenshots",

		PageTimeout:   25 * time.Second,
		DelayMin:      2 * time.Second,
		DelayMax:      5 * time.Second,
		WorkerTimeout: 5 * time.Minute,
		JobMaxAge:     24 * time.Hour,
		MaxRetries:    3,

		Workers:         2,
		RequestsPerHour: 50,
		TempDir:         filepath.Join(os.TempDir(), "flightcal"),

		DBDriver:      "pgx",
		CacheTTL:      60 * time.Minute,
		MemoCacheSize: 512,

		DBHost:     "localhost",
		DBPort:     5432,
		DBUser:     "flightcal",
		DBPassword: "flightcal",
		DBName:     "flight_prices",
		DBSSLMode:  "disable",

		LogLevel: "info",
	}
}

// DSN returns DatabaseURL when set, otherwise a key/value DSN built from the
// individual PostgreSQL settings.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DBDriver == "sqlite" {
		return "flightcal.db"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost,
		c.DBPort,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBSSLMode,
	)
}

// Addr is the listen address of the HTTP API.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// RandomDelay returns a pause drawn uniformly from [DelayMin, DelayMax].
func (c Config) RandomDelay() time.Duration {
	if c.DelayMax <= c.DelayMin {
		return c.DelayMin
	}
	return c.DelayMin + time.Duration(rand.Int63n(int64(c.DelayMax-c.DelayMin)))
}

// RandomUserAgent picks one of the configured user agents.
func (c Config) RandomUserAgent() string {
	if len(c.UserAgents) == 0 {
		return ""
	}
	return c.UserAgents[rand.Intn(len(c.UserAgents))]
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// applyEnv overrides c with any variables set in the environment.
func (c *Config) applyEnv() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.Debug = getEnvBool("DEBUG", c.Debug)

	c.APIHost = getEnv("API_HOST", c.APIHost)
	c.APIPort = getEnvInt("API_PORT", c.APIPort)
	c.APIRateLimit = getEnvInt("API_RATE_LIMIT", c.APIRateLimit)
	c.APIRateWindow = getEnvDuration("API_RATE_WINDOW", c.APIRateWindow)

	c.Headless = getEnvBool("HEADLESS", c.Headless)
	c.ScreenshotOnError = getEnvBool("SCREENSHOT_ON_ERROR", c.ScreenshotOnError)
	c.ScreenshotDir = getEnv("SCREENSHOT_DIR", c.ScreenshotDir)
	c.UseProxy = getEnvBool("USE_PROXY", c.UseProxy)
	c.ProxyURL = getEnv("PROXY_URL", c.ProxyURL)
	c.Locale = getEnv("BROWSER_LOCALE", c.Locale)
	c.Timezone = getEnv("BROWSER_TIMEZONE", c.Timezone)

	c.PageTimeout = getEnvDuration("TIMEOUT", c.PageTimeout)
	c.DelayMin = getEnvDuration("DELAY_MIN", c.DelayMin)
	c.DelayMax = getEnvDuration("DELAY_MAX", c.DelayMax)
	c.WorkerTimeout = getEnvDuration("WORKER_TIMEOUT", c.WorkerTimeout)
	c.JobMaxAge = getEnvDuration("JOB_MAX_AGE", c.JobMaxAge)
	c.MaxRetries = getEnvInt("MAX_RETRIES", c.MaxRetries)

	c.Workers = getEnvInt("WORKERS", c.Workers)
	c.RequestsPerHour = getEnvInt("REQUESTS_PER_HOUR", c.RequestsPerHour)
	c.TempDir = getEnv("TEMP_DIR", c.TempDir)

	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	if v := os.Getenv("CACHE_TTL_MINUTES"); v != "" {
		if minutes, err := strconv.Atoi(v); err == nil {
			c.CacheTTL = time.Duration(minutes) * time.Minute
		}
	}
	c.MemoCacheSize = getEnvInt("MEMO_CACHE_SIZE", c.MemoCacheSize)

	c.DBHost = getEnv("DB_HOST", c.DBHost)
	c.DBPort = getEnvInt("DB_PORT", c.DBPort)
	c.DBUser = getEnv("DB_USER", c.DBUser)
	c.DBPassword = getEnv("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnv("DB_NAME", c.DBName)
	c.DBSSLMode = getEnv("DB_SSLMODE", c.DBSSLMode)

	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

func getEnv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := parseDuration(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
