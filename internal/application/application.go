package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/eugenenazirov/sitedev/internal/api"
	"github.com/eugenenazirov/sitedev/internal/config"
	"github.com/eugenenazirov/sitedev/internal/integration"
)

type listenFunc func(network, address string) (net.Listener, error)

// App encapsulates the dev-server dependencies and HTTP server.
type App struct {
	cfg     config.Config
	handler *api.Handler
	router  http.Handler
	metrics *prometheus.Registry
	logger  *zap.Logger
	server  *http.Server
	listen  listenFunc

	mu       sync.RWMutex
	listener net.Listener
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	setup := integration.NewServerSetup(logger)
	if err := integration.ConfigureServer(setup, cfg.Site.Integrations()); err != nil {
		return nil, fmt.Errorf("failed to configure integrations: %w", err)
	}

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app := &App{
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		listen:  net.Listen,
	}

	app.handler = api.NewHandler(cfg.Site, api.WithAddress(app.Addr))
	router, err := api.NewRouter(app.handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithStatic(cfg.PublicPath(), setup.ContentTypes()),
		api.WithRoutes(setup.Routes()),
		api.WithMetricsRegistry(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	app.router = router
	app.server = NewServer(cfg, router)

	return app, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Site.Address(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listener and serves in a goroutine. Binding happens before
// Start returns so a port that cannot be acquired is reported to the caller.
func (a *App) Start() error {
	ln, err := listenWithFallback(a.listen, a.cfg.Site.Host(), a.cfg.Site.Port(), a.cfg.PortAttempts, a.logger)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.listener = ln
	a.server.Addr = ln.Addr().String()
	a.mu.Unlock()

	go func() {
		a.logger.Info("dev server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("public_dir", a.cfg.PublicPath()),
			zap.Strings("integrations", a.cfg.Site.IntegrationNames()),
		)
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started, the preferred address before.
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return a.cfg.Site.Address()
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Watch reports edits of the declaration file until ctx is cancelled. The
// running server keeps its configuration; a valid edit only logs what a
// restart would change. It returns immediately when no file was loaded.
func (a *App) Watch(ctx context.Context, reload func() (config.Config, error)) error {
	if a.cfg.ConfigFile == "" {
		a.logger.Debug("no declaration file to watch")
		return nil
	}
	return config.Watch(ctx, a.cfg.ConfigFile, a.logger, reload, func(next config.Config) {
		if sameSite(a.cfg.Site, next.Site) {
			a.logger.Info("declaration saved without effective changes")
			return
		}
		a.logger.Warn("declaration changed, restart the dev server to apply",
			zap.String("running_addr", a.cfg.Site.Address()),
			zap.String("declared_addr", next.Site.Address()),
			zap.Strings("running_integrations", a.cfg.Site.IntegrationNames()),
			zap.Strings("declared_integrations", next.Site.IntegrationNames()),
		)
	})
}

func sameSite(a, b config.ResolvedConfig) bool {
	return a.Address() == b.Address() &&
		a.PublicDir() == b.PublicDir() &&
		slices.Equal(a.IntegrationNames(), b.IntegrationNames())
}

// listenWithFallback binds port, then port+1 and so on while the address is
// in use, for at most attempts ports and never beyond config.MaxPort.
func listenWithFallback(listen listenFunc, host string, port, attempts int, logger *zap.Logger) (net.Listener, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts && port+i <= config.MaxPort; i++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port+i))
		ln, err := listen("tcp", addr)
		if err == nil {
			if i > 0 {
				logger.Warn("preferred port in use, serving on fallback port",
					zap.Int("preferred_port", port), zap.Int("port", port+i))
			}
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen on %s: %w", addr, err)
		}
		logger.Info("port in use, trying next", zap.Int("port", port+i))
		lastErr = err
	}

	return nil, fmt.Errorf("no free port among %d attempt(s) starting at %d: %w", attempts, port, lastErr)
}
