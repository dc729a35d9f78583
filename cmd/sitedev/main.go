package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/sitedev/internal/api"
	"github.com/eugenenazirov/sitedev/internal/application"
	"github.com/eugenenazirov/sitedev/internal/config"
	"github.com/eugenenazirov/sitedev/internal/logging"
)

var signalNotify = signal.Notify

type cliArgs struct {
	configFile     string
	root           string
	port           string
	host           string
	hostSet        bool
	rateLimitRPS   float64
	rateLimitBurst int
	watch          bool
	logLevel       string
}

func main() {
	kingpinApp := kingpin.New("sitedev", "Site dev server - resolves the site declaration and serves the project locally")
	args := &cliArgs{}
	kingpinApp.Flag("config", "Path to the site declaration (YAML or JSON)").StringVar(&args.configFile)
	kingpinApp.Flag("root", "Project root searched for site.config.{yaml,yml,json}").Default(".").StringVar(&args.root)
	kingpinApp.Flag("port", "Preferred dev server port").StringVar(&args.port)
	kingpinApp.Flag("host", "Interface to bind (empty binds all interfaces)").IsSetByUser(&args.hostSet).StringVar(&args.host)
	kingpinApp.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64Var(&args.rateLimitRPS)
	kingpinApp.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").IntVar(&args.rateLimitBurst)
	kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").Default("info").StringVar(&args.logLevel)

	devCmd := kingpinApp.Command("dev", "Start the dev server").Default()
	devCmd.Flag("watch", "Report edits of the declaration file").BoolVar(&args.watch)
	checkCmd := kingpinApp.Command("check", "Resolve the declaration and print the result as JSON")

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	overrides, err := args.overrides()
	if err != nil {
		kingpinApp.Fatalf("%v", err)
	}

	switch command {
	case checkCmd.FullCommand():
		if err := check(overrides, os.Stdout); err != nil {
			kingpinApp.Fatalf("%v", err)
		}
	case devCmd.FullCommand():
		dev(overrides, args)
	}
}

// overrides converts parsed flags into config overrides. Flags left at their
// defaults do not override lower-precedence sources.
func (a *cliArgs) overrides() (*config.CLIOverrides, error) {
	overrides := &config.CLIOverrides{
		ConfigFile: a.configFile,
		Root:       a.root,
	}

	if raw := strings.TrimSpace(a.port); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("--port %q: %w", raw, config.ErrInvalidPort)
		}
		overrides.Port = &port
	}

	if a.hostSet {
		host := a.host
		overrides.Host = &host
	}

	if a.rateLimitRPS >= 0 {
		rps := a.rateLimitRPS
		overrides.RateLimitRPS = &rps
	}

	if a.rateLimitBurst >= 0 {
		burst := a.rateLimitBurst
		overrides.RateLimitBurst = &burst
	}

	return overrides, nil
}

func dev(overrides *config.CLIOverrides, args *cliArgs) {
	logger, err := logging.New(args.logLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	cfg, err := config.Load(overrides)
	if err != nil {
		logger.Fatal("failed to resolve configuration", zap.Error(err))
	}

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if args.watch {
		go func() {
			reload := func() (config.Config, error) {
				return config.Load(overrides)
			}
			if err := app.Watch(ctx, reload); err != nil {
				logger.Error("declaration watcher stopped", zap.Error(err))
			}
		}()
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)
}

type checkOutput struct {
	api.ConfigResponse
	ConfigFile string `json:"configFile,omitempty"`
}

// check resolves the configuration and writes it to out as indented JSON.
func check(overrides *config.CLIOverrides, out io.Writer) error {
	cfg, err := config.Load(overrides)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(checkOutput{
		ConfigResponse: api.NewConfigResponse(cfg.Site, ""),
		ConfigFile:     cfg.ConfigFile,
	})
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
