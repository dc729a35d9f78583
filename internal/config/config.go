package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/eugenenazirov/sitedev/internal/integration"
)

const (
	defaultRateLimitRPS   = 100.0
	defaultRateLimitBurst = 200
	defaultPortAttempts   = 10
)

// candidateFiles are probed in the project root when no file is given.
var candidateFiles = []string{"site.config.yaml", "site.config.yml", "site.config.json"}

// Config aggregates the resolved site configuration and the dev-server runtime settings.
// Precedence: CLI flags > Environment variables > Declaration file > Defaults
type Config struct {
	Site                 ResolvedConfig
	Root                 string
	ConfigFile           string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	PortAttempts         int
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile     string
	Root           string
	Port           *int
	Host           *string
	RateLimitRPS   *float64
	RateLimitBurst *int
}

// envConfig maps the supported environment variables.
type envConfig struct {
	Port           string  `env:"PORT"`
	Host           string  `env:"SITE_HOST"`
	PublicDir      string  `env:"SITE_PUBLIC_DIR"`
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"-1"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"-1"`
}

// Option configures Load.
type Option func(*loadOptions)

type loadOptions struct {
	registry *integration.Registry
}

// WithRegistry sets the registry used to build declared integrations.
func WithRegistry(registry *integration.Registry) Option {
	return func(o *loadOptions) {
		o.registry = registry
	}
}

// Load resolves the configuration from multiple sources with precedence:
// CLI flags > Environment variables > Declaration file > Defaults
func Load(overrides *CLIOverrides, opts ...Option) (Config, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.registry == nil {
		options.registry = integration.NewRegistry()
	}
	if overrides == nil {
		overrides = &CLIOverrides{}
	}

	cfg := defaultConfig()
	if overrides.Root != "" {
		cfg.Root = overrides.Root
	}

	var decl Declaration

	path, err := locateConfigFile(cfg.Root, overrides.ConfigFile)
	if err != nil {
		return Config{}, err
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load declaration: read file: %w", err)
		}
		var dev devSection
		decl, dev, err = parseDocument(data, options.registry)
		if err != nil {
			return Config{}, fmt.Errorf("load declaration %s: %w", path, err)
		}
		if err := applyDevSection(&cfg, dev); err != nil {
			return Config{}, fmt.Errorf("load declaration %s: %w", path, err)
		}
		cfg.ConfigFile = path
	}

	// Environment variables override the file
	if err := applyEnvConfig(&cfg, &decl); err != nil {
		return Config{}, err
	}

	// CLI overrides (highest precedence)
	applyCLIOverrides(&cfg, &decl, overrides)

	site, err := Resolve(decl)
	if err != nil {
		return Config{}, err
	}
	cfg.Site = site

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// PublicPath returns the static directory joined with the project root.
func (c Config) PublicPath() string {
	dir := c.Site.PublicDir()
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(c.Root, dir)
}

// defaultConfig returns a Config with default runtime values.
func defaultConfig() Config {
	return Config{
		Root:                 ".",
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		PortAttempts:         defaultPortAttempts,
	}
}

// locateConfigFile returns the explicit path or the first candidate found in root.
// An empty result means no declaration file.
func locateConfigFile(root, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("load declaration: %w", err)
		}
		return explicit, nil
	}

	for _, name := range candidateFiles {
		candidate := filepath.Join(root, name)
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("load declaration: %w", err)
		}
	}
	return "", nil
}

// applyDevSection applies the dev section of the declaration file.
func applyDevSection(cfg *Config, dev devSection) error {
	durations := []struct {
		key    string
		raw    string
		target *time.Duration
	}{
		{"dev.shutdown_grace_period", dev.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"dev.read_header_timeout", dev.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"dev.write_timeout", dev.WriteTimeout, &cfg.WriteTimeout},
		{"dev.idle_timeout", dev.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		value, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.target = value
	}

	if dev.EnableRequestLogging != nil {
		cfg.EnableRequestLogging = *dev.EnableRequestLogging
	}
	if dev.PortAttempts != nil {
		cfg.PortAttempts = *dev.PortAttempts
	}
	if dev.RateLimit.RPS != nil {
		cfg.RateLimitRPS = *dev.RateLimit.RPS
	}
	if dev.RateLimit.Burst != nil {
		cfg.RateLimitBurst = *dev.RateLimit.Burst
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config, decl *Declaration) error {
	var vars envConfig
	if err := env.Parse(&vars); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	if raw := strings.TrimSpace(vars.Port); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: PORT=%q", ErrInvalidPort, raw)
		}
		decl.Server.Port = &port
	}

	if host := strings.TrimSpace(vars.Host); host != "" {
		decl.Server.Host = &host
	}

	if dir := strings.TrimSpace(vars.PublicDir); dir != "" {
		decl.PublicDir = &dir
	}

	if vars.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = vars.RateLimitRPS
	}

	if vars.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = vars.RateLimitBurst
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, decl *Declaration, overrides *CLIOverrides) {
	if overrides.Port != nil {
		port := *overrides.Port
		decl.Server.Port = &port
	}

	if overrides.Host != nil {
		host := *overrides.Host
		decl.Server.Host = &host
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}
}

// validateConfig validates the runtime settings.
func validateConfig(cfg Config) error {
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.PortAttempts < 1 {
		return fmt.Errorf("dev.port_attempts must be >= 1")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("dev.shutdown_grace_period must be positive")
	}
	return nil
}
