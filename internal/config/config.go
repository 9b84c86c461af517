package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIBase     = "http://127.0.0.1:8000"
	DefaultBypassName  = "ngrok-skip-browser-warning"
	DefaultBypassValue = "true"
)

// Config is read once at startup and injected into every component.
type Config struct {
	APIBase      string `yaml:"api_base"`
	Port         string `yaml:"port"`
	Environment  string `yaml:"environment"`
	LogLevel     string `yaml:"log_level"`
	FromNumber   string `yaml:"from_number"`
	BypassHeader string `yaml:"proxy_bypass_header"`
	BypassValue  string `yaml:"proxy_bypass_value"`

	HTTPTimeoutSec   int `yaml:"http_timeout_sec"`
	ProbeIntervalSec int `yaml:"probe_interval_sec"`
	ExportLimit      int `yaml:"export_limit"`
	PageLimit        int `yaml:"page_limit"`
	SessionIdleSec   int `yaml:"session_idle_sec"`
}

func defaults() *Config {
	return &Config{
		APIBase:          DefaultAPIBase,
		Port:             "8080",
		Environment:      "local",
		LogLevel:         "info",
		BypassHeader:     DefaultBypassName,
		BypassValue:      DefaultBypassValue,
		HTTPTimeoutSec:   30,
		ProbeIntervalSec: 30,
		ExportLimit:      5000,
		PageLimit:        20,
		SessionIdleSec:   900,
	}
}

// Load reads .env (if present), then the optional YAML file named by
// CONSOLE_CONFIG, then environment variables. Later sources win.
func Load() (*Config, error) {
	_ = godotenv.Load() // loads .env

	cfg := defaults()
	if path := os.Getenv("CONSOLE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.mergeEnv(os.Getenv); err != nil {
		return nil, err
	}
	cfg.APIBase = NormalizeBase(cfg.APIBase)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) mergeEnv(getenv func(string) string) error {
	str := map[string]*string{
		"VOICE_API_BASE":      &c.APIBase,
		"PORT":                &c.Port,
		"ENVIRONMENT":         &c.Environment,
		"LOG_LEVEL":           &c.LogLevel,
		"FROM_NUMBER":         &c.FromNumber,
		"PROXY_BYPASS_HEADER": &c.BypassHeader,
		"PROXY_BYPASS_VALUE":  &c.BypassValue,
	}
	for k, dst := range str {
		if v := getenv(k); v != "" {
			*dst = v
		}
	}

	num := map[string]*int{
		"HTTP_TIMEOUT_SEC":   &c.HTTPTimeoutSec,
		"PROBE_INTERVAL_SEC": &c.ProbeIntervalSec,
		"EXPORT_LIMIT":       &c.ExportLimit,
		"PAGE_LIMIT":         &c.PageLimit,
		"SESSION_IDLE_SEC":   &c.SessionIdleSec,
	}
	for k, dst := range num {
		v := getenv(k)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", k, v)
		}
		*dst = n
	}
	return nil
}

func (c *Config) validate() error {
	if c.APIBase == "" {
		return fmt.Errorf("api_base is required")
	}
	u, err := url.Parse(c.APIBase)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api_base must be an absolute URL, got %q", c.APIBase)
	}
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.HTTPTimeoutSec < 1 {
		return fmt.Errorf("http_timeout_sec must be positive, got %d", c.HTTPTimeoutSec)
	}
	if c.ProbeIntervalSec < 1 {
		return fmt.Errorf("probe_interval_sec must be positive, got %d", c.ProbeIntervalSec)
	}
	if c.SessionIdleSec < 1 {
		return fmt.Errorf("session_idle_sec must be positive, got %d", c.SessionIdleSec)
	}
	if c.PageLimit < 1 || c.PageLimit > 200 {
		return fmt.Errorf("page_limit must be between 1 and 200, got %d", c.PageLimit)
	}
	if c.ExportLimit < 1 || c.ExportLimit > 10000 {
		return fmt.Errorf("export_limit must be between 1 and 10000, got %d", c.ExportLimit)
	}
	return nil
}

// NormalizeBase trims whitespace and trailing slashes.
func NormalizeBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

func (c *Config) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeIntervalSec) * time.Second
}

// SessionIdle is how long a finished or never joined panel is kept.
func (c *Config) SessionIdle() time.Duration {
	return time.Duration(c.SessionIdleSec) * time.Second
}

// PassThroughHeaders is attached to every upstream request.
func (c *Config) PassThroughHeaders() map[string]string {
	if c.BypassHeader == "" {
		return nil
	}
	return map[string]string{c.BypassHeader: c.BypassValue}
}
