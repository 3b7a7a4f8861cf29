package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of a config file. Durations are strings
// ("25s", "1h") or bare seconds. Zero values leave the default untouched.
type fileConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	Debug       bool   `json:"debug" yaml:"debug"`

	API struct {
		Host       string `json:"host" yaml:"host"`
		Port       int    `json:"port" yaml:"port"`
		RateLimit  int    `json:"rate_limit" yaml:"rate_limit"`
		RateWindow string `json:"rate_window" yaml:"rate_window"`
	} `json:"api" yaml:"api"`

	Browser struct {
		Headless          *bool    `json:"headless" yaml:"headless"`
		UserAgents        []string `json:"user_agents" yaml:"user_agents"`
		Locale            string   `json:"locale" yaml:"locale"`
		Timezone          string   `json:"timezone" yaml:"timezone"`
		ScreenshotOnError *bool    `json:"screenshot_on_error" yaml:"screenshot_on_error"`
		ScreenshotDir     string   `json:"screenshot_dir" yaml:"screenshot_dir"`
		ProxyURL          string   `json:"proxy_url" yaml:"proxy_url"`
		PageTimeout       string   `json:"page_timeout" yaml:"page_timeout"`
		DelayMin          string   `json:"delay_min" yaml:"delay_min"`
		DelayMax          string   `json:"delay_max" yaml:"delay_max"`
	} `json:"browser" yaml:"browser"`

	Jobs struct {
		Workers         int    `json:"workers" yaml:"workers"`
		RequestsPerHour int    `json:"requests_per_hour" yaml:"requests_per_hour"`
		Timeout         string `json:"timeout" yaml:"timeout"`
		MaxAge          string `json:"max_age" yaml:"max_age"`
		TempDir         string `json:"temp_dir" yaml:"temp_dir"`
	} `json:"jobs" yaml:"jobs"`

	Database struct {
		Driver   string `json:"driver" yaml:"driver"`
		URL      string `json:"url" yaml:"url"`
		Host     string `json:"host" yaml:"host"`
		Port     int    `json:"port" yaml:"port"`
		User     string `json:"user" yaml:"user"`
		Password string `json:"password" yaml:"password"`
		Name     string `json:"name" yaml:"name"`
		SSLMode  string `json:"sslmode" yaml:"sslmode"`
		CacheTTL string `json:"cache_ttl" yaml:"cache_ttl"`
	} `json:"database" yaml:"database"`

	Log struct {
		Level string `json:"level" yaml:"level"`
		File  string `json:"file" yaml:"file"`
	} `json:"log" yaml:"log"`
}

// Load builds a Config from defaults, a .env file, an optional config file
// (json5 or yaml, merged with its ".local" sibling) and finally the
// environment. An empty path skips the config file.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		fc, err := readConfigFile(path)
		if err != nil {
			return cfg, err
		}
		if err := fc.apply(&cfg); err != nil {
			return cfg, fmt.Errorf("apply %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// readConfigFile reads name and merges name.local.<ext> over it.
func readConfigFile(name string) (fileConfig, error) {
	var out fileConfig

	base, err := decodeFile(name)
	if err != nil {
		return out, err
	}
	out = base

	ext := filepath.Ext(name)
	localPath := strings.TrimSuffix(name, ext) + ".local" + ext
	if _, err := os.Stat(localPath); err == nil {
		override, err := decodeFile(localPath)
		if err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("merge %s: %w", localPath, err)
		}
		slog.Info("merging config with local overrides", "local", localPath)
	}
	return out, nil
}

func decodeFile(name string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(name)
	if err != nil {
		return fc, fmt.Errorf("read config %s: %w", name, err)
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	case ".json", ".json5":
		err = json5.Unmarshal(data, &fc)
	default:
		return fc, fmt.Errorf("unsupported config format %q", filepath.Ext(name))
	}
	if err != nil {
		return fc, fmt.Errorf("decode config %s: %w", name, err)
	}
	return fc, nil
}

func (fc fileConfig) apply(c *Config) error {
	setString(&c.Environment, fc.Environment)
	c.Debug = c.Debug || fc.Debug

	setString(&c.APIHost, fc.API.Host)
	setInt(&c.APIPort, fc.API.Port)
	setInt(&c.APIRateLimit, fc.API.RateLimit)

	if fc.Browser.Headless != nil {
		c.Headless = *fc.Browser.Headless
	}
	if len(fc.Browser.UserAgents) > 0 {
		c.UserAgents = fc.Browser.UserAgents
	}
	setString(&c.Locale, fc.Browser.Locale)
	setString(&c.Timezone, fc.Browser.Timezone)
	if fc.Browser.ScreenshotOnError != nil {
		c.ScreenshotOnError = *fc.Browser.ScreenshotOnError
	}
	setString(&c.ScreenshotDir, fc.Browser.ScreenshotDir)
	if fc.Browser.ProxyURL != "" {
		c.UseProxy = true
		c.ProxyURL = fc.Browser.ProxyURL
	}

	setInt(&c.Workers, fc.Jobs.Workers)
	setInt(&c.RequestsPerHour, fc.Jobs.RequestsPerHour)
	setString(&c.TempDir, fc.Jobs.TempDir)

	setString(&c.DBDriver, fc.Database.Driver)
	setString(&c.DatabaseURL, fc.Database.URL)
	setString(&c.DBHost, fc.Database.Host)
	setInt(&c.DBPort, fc.Database.Port)
	setString(&c.DBUser, fc.Database.User)
	setString(&c.DBPassword, fc.Database.Password)
	setString(&c.DBName, fc.Database.Name)
	setString(&c.DBSSLMode, fc.Database.SSLMode)

	setString(&c.LogLevel, fc.Log.Level)
	setString(&c.LogFile, fc.Log.File)

	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{fc.API.RateWindow, &c.APIRateWindow},
		{fc.Browser.PageTimeout, &c.PageTimeout},
		{fc.Browser.DelayMin, &c.DelayMin},
		{fc.Browser.DelayMax, &c.DelayMax},
		{fc.Jobs.Timeout, &c.WorkerTimeout},
		{fc.Jobs.MaxAge, &c.JobMaxAge},
		{fc.Database.CacheTTL, &c.CacheTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := parseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
