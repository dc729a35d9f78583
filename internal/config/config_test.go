package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("SITE_HOST", "")
	t.Setenv("SITE_PUBLIC_DIR", "")
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(&CLIOverrides{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Site.Port() != DefaultPort {
		t.Fatalf("expected default port %d, got %d", DefaultPort, cfg.Site.Port())
	}
	if len(cfg.Site.Integrations()) != 0 {
		t.Fatalf("expected no integrations, got %v", cfg.Site.IntegrationNames())
	}
	if cfg.ConfigFile != "" {
		t.Fatalf("expected no config file, got %s", cfg.ConfigFile)
	}
	if cfg.ShutdownGracePeriod != 10*time.Second {
		t.Fatalf("unexpected shutdown grace period: %s", cfg.ShutdownGracePeriod)
	}
	if cfg.PortAttempts != defaultPortAttempts {
		t.Fatalf("unexpected port attempts: %d", cfg.PortAttempts)
	}
}

func TestLoadNilOverrides(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Port() != DefaultPort {
		t.Fatalf("expected default port, got %d", cfg.Site.Port())
	}
}

func TestLoadDiscoversDeclarationInRoot(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	path := writeFile(t, root, "site.config.yml", `
server:
  port: 3141
public_dir: static
integrations:
  - mdx
dev:
  shutdown_grace_period: 2s
  write_timeout: 1m
  enable_request_logging: false
  port_attempts: 3
  rate_limit:
    rps: 5
    burst: 0
`)

	cfg, err := Load(&CLIOverrides{Root: root})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ConfigFile != path {
		t.Fatalf("expected config file %s, got %s", path, cfg.ConfigFile)
	}
	if cfg.Site.Port() != 3141 {
		t.Fatalf("expected port 3141, got %d", cfg.Site.Port())
	}
	if names := cfg.Site.IntegrationNames(); len(names) != 1 || names[0] != "@astrojs/mdx" {
		t.Fatalf("unexpected integrations: %v", names)
	}
	if cfg.PublicPath() != filepath.Join(root, "static") {
		t.Fatalf("unexpected public path: %s", cfg.PublicPath())
	}
	if cfg.ShutdownGracePeriod != 2*time.Second || cfg.WriteTimeout != time.Minute {
		t.Fatalf("dev durations not applied: %+v", cfg)
	}
	if cfg.EnableRequestLogging {
		t.Fatalf("expected request logging to be disabled")
	}
	if cfg.PortAttempts != 3 || cfg.RateLimitRPS != 5 || cfg.RateLimitBurst != 0 {
		t.Fatalf("dev settings not applied: %+v", cfg)
	}
}

func TestLoadCandidateOrder(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	writeFile(t, root, "site.config.json", `{"server": {"port": 9000}}`)
	writeFile(t, root, "site.config.yaml", "server:\n  port: 9001\n")

	cfg, err := Load(&CLIOverrides{Root: root})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Port() != 9001 {
		t.Fatalf("expected site.config.yaml to win, got port %d", cfg.Site.Port())
	}
}

func TestLoadPrecedence(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()
	path := writeFile(t, root, "custom.yaml", "server:\n  port: 3000\n  host: file-host\n")

	t.Setenv("PORT", "4000")
	t.Setenv("SITE_HOST", "env-host")
	t.Setenv("SITE_PUBLIC_DIR", "env-public")

	cfg, err := Load(&CLIOverrides{ConfigFile: path, Root: root})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Port() != 4000 || cfg.Site.Host() != "env-host" || cfg.Site.PublicDir() != "env-public" {
		t.Fatalf("expected environment to override file, got %s public=%s", cfg.Site.Address(), cfg.Site.PublicDir())
	}

	port := 5000
	host := "cli-host"
	rps := 1.5
	burst := 3
	cfg, err = Load(&CLIOverrides{ConfigFile: path, Root: root, Port: &port, Host: &host, RateLimitRPS: &rps, RateLimitBurst: &burst})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Site.Port() != 5000 || cfg.Site.Host() != "cli-host" {
		t.Fatalf("expected CLI to override environment, got %s", cfg.Site.Address())
	}
	if cfg.RateLimitRPS != 1.5 || cfg.RateLimitBurst != 3 {
		t.Fatalf("rate limit overrides not applied: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadRateLimitFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("RATE_LIMIT_RPS", "7")
	t.Setenv("RATE_LIMIT_BURST", "9")

	cfg, err := Load(&CLIOverrides{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RateLimitRPS != 7 || cfg.RateLimitBurst != 9 {
		t.Fatalf("unexpected rate limit: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoadInvalidPortSources(t *testing.T) {
	t.Run("file", func(t *testing.T) {
		clearEnv(t)
		root := t.TempDir()
		writeFile(t, root, "site.config.yaml", "server:\n  port: 70000\n")

		if _, err := Load(&CLIOverrides{Root: root}); !errors.Is(err, ErrInvalidPort) {
			t.Fatalf("expected ErrInvalidPort, got %v", err)
		}
	})

	t.Run("environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PORT", "http")

		if _, err := Load(&CLIOverrides{Root: t.TempDir()}); !errors.Is(err, ErrInvalidPort) {
			t.Fatalf("expected ErrInvalidPort, got %v", err)
		}
	})

	t.Run("flag", func(t *testing.T) {
		clearEnv(t)
		port := 0

		if _, err := Load(&CLIOverrides{Root: t.TempDir(), Port: &port}); !errors.Is(err, ErrInvalidPort) {
			t.Fatalf("expected ErrInvalidPort, got %v", err)
		}
	})
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	root := t.TempDir()

	if _, err := Load(&CLIOverrides{ConfigFile: filepath.Join(root, "missing.yaml")}); err == nil {
		t.Fatalf("expected error for missing explicit file")
	}

	bad := writeFile(t, root, "bad-duration.yaml", "dev:\n  idle_timeout: soon\n")
	if _, err := Load(&CLIOverrides{ConfigFile: bad}); err == nil {
		t.Fatalf("expected error for invalid duration")
	}

	attempts := writeFile(t, root, "attempts.yaml", "dev:\n  port_attempts: 0\n")
	if _, err := Load(&CLIOverrides{ConfigFile: attempts}); err == nil {
		t.Fatalf("expected error for zero port attempts")
	}

	malformed := writeFile(t, root, "malformed.yaml", "integrations: mdx\n")
	if _, err := Load(&CLIOverrides{ConfigFile: malformed}); !errors.Is(err, ErrMalformedIntegrations) {
		t.Fatalf("expected ErrMalformedIntegrations, got %v", err)
	}
}

func TestPublicPathKeepsAbsoluteDir(t *testing.T) {
	clearEnv(t)
	abs := t.TempDir()
	t.Setenv("SITE_PUBLIC_DIR", abs)

	cfg, err := Load(&CLIOverrides{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.PublicPath() != abs {
		t.Fatalf("expected %s, got %s", abs, cfg.PublicPath())
	}
}
