package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrSnakeDoc/pimon/internal/config"
	"github.com/MrSnakeDoc/pimon/internal/device"
	"github.com/MrSnakeDoc/pimon/internal/domain"
	"github.com/MrSnakeDoc/pimon/internal/events"
	"github.com/MrSnakeDoc/pimon/internal/executor"
	"github.com/MrSnakeDoc/pimon/internal/httpserver"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pimon/internal/httpserver/mw"
	"github.com/MrSnakeDoc/pimon/internal/logger"
	"github.com/MrSnakeDoc/pimon/internal/metrics"
	"github.com/MrSnakeDoc/pimon/internal/provision"
	"github.com/MrSnakeDoc/pimon/internal/services"
	"github.com/MrSnakeDoc/pimon/internal/sources/registry"
	"github.com/MrSnakeDoc/pimon/internal/telemetry"
	"github.com/MrSnakeDoc/pimon/internal/utils"
	"github.com/MrSnakeDoc/pimon/internal/version"
)

type App struct {
	cfg       *config.Config
	logger    logger.Logger
	server    *httpserver.Server
	device    *device.Device
	publisher events.Publisher
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	descriptors, err := loadServices(cfg.ServicesFile, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to load services: %v", err)
		os.Exit(1)
	}
	reg, err := services.NewRegistry(descriptors)
	if err != nil {
		loggerClient.Errorf("Invalid service registry: %v", err)
		os.Exit(1)
	}

	m := telemetry.New()
	exec := executor.New(executor.Options{
		Timeout:          cfg.ExecTimeout,
		PrivilegeCommand: cfg.PrivilegeCommand,
		Observer:         m,
	}, loggerClient.With(logger.String("component", "executor")))

	collector := metrics.NewCollector(exec, loggerClient.With(logger.String("component", "metrics")), metrics.Options{
		SampleWindow: cfg.CPUSample,
		DiskPath:     cfg.DiskPath,
	})

	// Fail fast if the configured bus is unreachable.
	publisher, err := newPublisher(cfg, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to initialize events backend: %v", err)
		os.Exit(1)
	}

	dev := device.New(device.Config{
		Name:      collector.Hostname(context.Background()),
		Executor:  exec,
		Registry:  reg,
		Collector: collector,
		Logger:    loggerClient,
		Events:    publisher,
		Metrics:   m,
		Provision: provision.Options{
			Package:   cfg.ProvisionPackage,
			SetupURL:  cfg.ProvisionSetupURL,
			Installer: cfg.Installer,
			Port:      cfg.ProvisionPort,
			Timeout:   cfg.ProvisionTimeout,
		},
		AgentService: cfg.AgentService,
	})

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		Device:       dev,
		Metrics:      m.Handler(),
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RateLimit: mw.RateLimitConfig{
			Burst:      cfg.RateBurst,
			PerSecond:  cfg.RateLimit,
			MaxEntries: 1024,
			TrustProxy: cfg.TrustProxy,
		},
	}

	return &App{
		cfg:       cfg,
		logger:    loggerClient,
		server:    httpserver.New(cfg, loggerClient, d),
		device:    dev,
		publisher: publisher,
	}
}

func loadServices(path string, log logger.Logger) ([]domain.ServiceDescriptor, error) {
	if path == "" {
		log.Info("no services file configured, using built-in list")
		return registry.Defaults(), nil
	}
	descriptors, err := registry.NewLoader(path).Load()
	if err != nil {
		return nil, err
	}
	log.Info("services loaded",
		logger.String("file", path),
		logger.Int("count", len(descriptors)))
	return descriptors, nil
}

func newPublisher(cfg *config.Config, log logger.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsRedis:
		return events.NewRedis(context.Background(), events.RedisOptions{
			Addr:           cfg.RedisAddr,
			User:           cfg.RedisUser,
			Password:       cfg.RedisPassword,
			DB:             cfg.RedisDB,
			Channel:        cfg.EventsSubject,
			DialTimeout:    cfg.RedisDT,
			ConnectTimeout: cfg.RedisConnectTimeout,
			RetryInterval:  cfg.RedisRetryInterval,
			MaxWait:        cfg.RedisMaxWait,
			PingTimeout:    cfg.RedisPingTimeout,
		}, log.With(logger.String("component", "events")))
	case config.EventsNATS:
		return events.NewNATS(cfg.NATSURL, cfg.EventsSubject, log.With(logger.String("component", "events")))
	default:
		log.Info("events backend disabled")
		return events.Noop{}, nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting pimon v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("pimon %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.device.Wait(shutdownCtx); err != nil {
		a.logger.Warn("provisioning still running at shutdown", logger.Error(err))
	}

	utils.CloseLogged(a.publisher, a.logger, "events publisher")
	a.logger.Info("✅ pimon stopped cleanly")
	_ = a.logger.Sync()
	return nil
}
