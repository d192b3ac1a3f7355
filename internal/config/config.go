// Package config loads sessionops settings from YAML with environment
// overrides.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sessionops/internal/browser"
	"sessionops/internal/cdp"
	"sessionops/internal/extract"
	"sessionops/internal/logging"
)

// Config holds all sessionops configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Extraction ExtractionConfig `yaml:"extraction"`
	CDP        CDPConfig        `yaml:"cdp"`
	Browser    BrowserConfig    `yaml:"browser"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StoreConfig locates the capture database.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// ExtractionConfig configures remote extraction.
type ExtractionConfig struct {
	Timeout string `yaml:"timeout"`
	// Assemblies overrides the tool path per method name.
	Assemblies map[string]string `yaml:"assemblies,omitempty"`
}

// CDPConfig configures the DevTools client.
type CDPConfig struct {
	AllowedHosts    []string `yaml:"allowed_hosts"`
	DefaultPort     int      `yaml:"default_port"`
	HTTPTimeout     string   `yaml:"http_timeout"`
	ExchangeTimeout string   `yaml:"exchange_timeout"`
}

// BrowserConfig configures the automation engine.
type BrowserConfig struct {
	Binary         string `yaml:"binary,omitempty"`
	Headless       bool   `yaml:"headless"`
	NoSandbox      bool   `yaml:"no_sandbox"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Dir        string          `yaml:"dir"`
	Level      string          `yaml:"level"`  // debug, info, warn, error
	Format     string          `yaml:"format"` // json, text
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	bc := browser.DefaultConfig()
	return &Config{
		Store: StoreConfig{DatabasePath: filepath.Join(".sessionops", "captures.db")},
		Extraction: ExtractionConfig{
			Timeout: extract.DefaultTimeout.String(),
		},
		CDP: CDPConfig{
			AllowedHosts:    append([]string(nil), cdp.DefaultAllowedHosts...),
			DefaultPort:     9222,
			HTTPTimeout:     cdp.DefaultHTTPTimeout.String(),
			ExchangeTimeout: cdp.DefaultExchangeTimeout.String(),
		},
		Browser: BrowserConfig{
			Headless:       bc.Headless,
			NoSandbox:      bc.NoSandbox,
			ViewportWidth:  bc.ViewportWidth,
			ViewportHeight: bc.ViewportHeight,
		},
		Logging: LoggingConfig{
			Dir:    filepath.Join(".sessionops", "logs"),
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
// Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if path := os.Getenv("SESSIONOPS_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if bin := os.Getenv("SESSIONOPS_BROWSER_BIN"); bin != "" {
		c.Browser.Binary = bin
	}
	if dir := os.Getenv("SESSIONOPS_LOG_DIR"); dir != "" {
		c.Logging.Dir = dir
	}
	if v := os.Getenv("SESSIONOPS_DEBUG"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Logging.DebugMode = on
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Store.DatabasePath == "" {
		return fmt.Errorf("store.database_path is required")
	}
	if c.CDP.DefaultPort <= 0 || c.CDP.DefaultPort > 65535 {
		return fmt.Errorf("invalid cdp.default_port: %d", c.CDP.DefaultPort)
	}
	if len(c.CDP.AllowedHosts) == 0 {
		return fmt.Errorf("cdp.allowed_hosts must not be empty")
	}
	for _, h := range c.CDP.AllowedHosts {
		if !isLoopback(h) {
			return fmt.Errorf("cdp.allowed_hosts entry is not loopback: %s", h)
		}
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive")
	}
	for method := range c.Extraction.Assemblies {
		if !isMethod(method) {
			return fmt.Errorf("unknown extraction method in assemblies: %s", method)
		}
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid logging.format: %s (valid: text, json)", c.Logging.Format)
	}
	return nil
}

func isLoopback(host string) bool {
	host = strings.Trim(host, "[]")
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func isMethod(s string) bool {
	for _, m := range extract.Methods() {
		if string(m) == s {
			return true
		}
	}
	return false
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetExtractionTimeout returns the extraction timeout as a duration.
func (c *Config) GetExtractionTimeout() time.Duration {
	return parseDuration(c.Extraction.Timeout, extract.DefaultTimeout)
}

// GetCDPHTTPTimeout returns the discovery request timeout.
func (c *Config) GetCDPHTTPTimeout() time.Duration {
	return parseDuration(c.CDP.HTTPTimeout, cdp.DefaultHTTPTimeout)
}

// GetCDPExchangeTimeout returns the per-message WebSocket timeout.
func (c *Config) GetCDPExchangeTimeout() time.Duration {
	return parseDuration(c.CDP.ExchangeTimeout, cdp.DefaultExchangeTimeout)
}

// ExtractorOptions converts the extraction section.
func (c *Config) ExtractorOptions() []extract.Option {
	opts := []extract.Option{extract.WithDefaultTimeout(c.GetExtractionTimeout())}
	for method, path := range c.Extraction.Assemblies {
		opts = append(opts, extract.WithAssembly(extract.Method(method), path))
	}
	return opts
}

// CDPOptions converts the cdp section.
func (c *Config) CDPOptions() []cdp.Option {
	return []cdp.Option{
		cdp.WithHTTPTimeout(c.GetCDPHTTPTimeout()),
		cdp.WithExchangeTimeout(c.GetCDPExchangeTimeout()),
	}
}

// BrowserManagerConfig converts the browser section.
func (c *Config) BrowserManagerConfig() browser.Config {
	return browser.Config{
		Headless:       c.Browser.Headless,
		NoSandbox:      c.Browser.NoSandbox,
		ViewportWidth:  c.Browser.ViewportWidth,
		ViewportHeight: c.Browser.ViewportHeight,
	}
}

// LoggingOptions converts the logging section.
func (c *Config) LoggingOptions() logging.Options {
	return logging.Options{
		Dir:        c.Logging.Dir,
		Level:      c.Logging.Level,
		DebugMode:  c.Logging.DebugMode,
		JSONFormat: c.Logging.Format == "json",
		Categories: c.Logging.Categories,
	}
}
