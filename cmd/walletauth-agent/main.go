package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/walletauth/internal/backend"
	"github.com/yndnr/walletauth/internal/connector/wsbridge"
	"github.com/yndnr/walletauth/internal/core/domain"
	"github.com/yndnr/walletauth/internal/core/service"
	"github.com/yndnr/walletauth/internal/infra/buildinfo"
	"github.com/yndnr/walletauth/internal/infra/confloader"
	"github.com/yndnr/walletauth/internal/infra/shutdown"
	"github.com/yndnr/walletauth/internal/server/config"
	"github.com/yndnr/walletauth/internal/server/httpserver"
	"github.com/yndnr/walletauth/internal/server/httpserver/handler"
	"github.com/yndnr/walletauth/internal/storage"
	"github.com/yndnr/walletauth/internal/storage/memory"
	"github.com/yndnr/walletauth/internal/telemetry/logger"
	"github.com/yndnr/walletauth/internal/telemetry/metric"
	"github.com/yndnr/walletauth/pkg/ethsig"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "walletauth-agent",
		Usage:   "Keep a wallet-signed session with the auth backend",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"WALLETAUTH_CONFIG"},
			},
			&cli.StringFlag{Name: "addr", Usage: "Local API listen address"},
			&cli.StringFlag{Name: "backend", Usage: "Auth backend base URL"},
			&cli.StringFlag{Name: "storage", Usage: "Token storage mode: badger or memory"},
			&cli.StringFlag{Name: "data-dir", Usage: "Token storage directory"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
		},
		Action: run,
	}
}

// overrides maps set flags to configuration keys.
func overrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"addr":      "server.http.addr",
		"backend":   "backend.base_url",
		"storage":   "storage.mode",
		"data-dir":  "storage.data_dir",
		"log-level": "log.level",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

func run(c *cli.Context) error {
	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides(c)),
	)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	info := buildinfo.Get()
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
		Attrs:  []slog.Attr{slog.String("service", "walletauth-agent")},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	log.Info("starting walletauth-agent",
		"version", info.Version,
		"commit", info.Commit,
		"config", loader.FilePath())
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	shutdownHandler := shutdown.NewHandler(shutdown.DefaultTimeout, log)

	store, closeStore, err := initStore(cfg, log, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	shutdownHandler.OnShutdown("storage", func(context.Context) error {
		return closeStore()
	})

	client, err := backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		TLSCAFile: cfg.Backend.TLSCAFile,
		UserAgent: cfg.Backend.UserAgent,
	}, backend.WithRecorder(metrics), backend.WithLogger(log))
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}

	bridge := wsbridge.New(wsbridge.Config{
		ProjectID:         cfg.Connector.ProjectID,
		OriginPatterns:    cfg.Connector.AllowedOrigins,
		HeartbeatInterval: cfg.Connector.HeartbeatInterval,
	}, log)

	bootstrap := service.NewBootstrap(bridge, log, metrics)
	bootstrap.OnStateChange(func(s domain.ConnectorState) {
		log.Info("connector state changed", "state", s.String())
	})
	observer := service.NewObserver(bootstrap, bridge, log, metrics)

	managerCfg := service.ManagerConfig{
		Store:          store,
		Backend:        client,
		Signer:         bridge,
		Snapshots:      observer,
		Challenges:     domain.NewChallengeBuilder(cfg.Auth.ProductName, nil),
		Logger:         log,
		Metrics:        metrics,
		RequestTimeout: cfg.Auth.RequestTimeout,
	}
	if cfg.Auth.VerifySignatureLocally {
		managerCfg.Checker = ethsig.NewChecker()
	}
	manager, err := service.NewSessionManager(managerCfg)
	if err != nil {
		return fmt.Errorf("init session manager: %w", err)
	}
	observer.Subscribe(manager.HandleWallet)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	managerDone := make(chan struct{})
	go func() {
		defer close(managerDone)
		if err := manager.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("session manager exited", "error", err)
		}
	}()
	go func() {
		_ = observer.RunWithRetry(ctx, manager.ConnectorFailed)
	}()
	shutdownHandler.OnShutdown("session manager", func(hookCtx context.Context) error {
		cancel()
		select {
		case <-managerDone:
			return nil
		case <-hookCtx.Done():
			return hookCtx.Err()
		}
	})

	if path := loader.FilePath(); path != "" {
		watcher, err := confloader.NewWatcher(path, confloader.WithWatcherLogger(log))
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			watcher.OnChange(func(string) { reloadLogLevel(loader, log) })
			go watcher.Start(ctx)
			shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	api := handler.New(handler.Config{
		Session:     manager,
		Wallet:      observer,
		Connector:   bootstrap,
		Logger:      log,
		AllowReveal: cfg.Server.HTTP.AllowReveal,
		Version:     info.Version,
	})
	routerCfg := httpserver.DefaultRouterConfig()
	routerCfg.API = api
	routerCfg.Bridge = bridge
	routerCfg.Metrics = metrics
	routerCfg.Logger = log
	routerCfg.CORSAllowedOrigins = cfg.Server.HTTP.AllowedOrigins
	routerCfg.RateLimit = cfg.Server.HTTP.RateLimit

	server := httpserver.New(cfg.Server.HTTP.Addr, httpserver.NewRouter(routerCfg), log)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.HTTP.Addr, err)
	}
	shutdownHandler.OnShutdown("http server", server.Shutdown)

	go func() {
		log.Info("local API listening", "addr", server.Addr())
		if err := server.ListenAndServe(); err != nil {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	if err := shutdownHandler.Wait(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}
	log.Info("agent stopped")
	return nil
}

func loadConfig(loader *confloader.Loader) (*config.AgentConfig, error) {
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// reloadLogLevel applies log.level from the changed file. Other settings
// need a restart.
func reloadLogLevel(loader *confloader.Loader, log *slog.Logger) {
	cfg, err := loadConfig(loader)
	if err != nil {
		log.Warn("ignoring invalid configuration change", "error", err)
		return
	}
	level := strings.ToLower(cfg.Log.Level)
	if level == logger.GetLevel() {
		return
	}
	if err := logger.SetLevel(level); err != nil {
		log.Warn("ignoring log level change", "error", err)
		return
	}
	log.Info("log level changed", "level", logger.GetLevel())
}

// initStore opens the token store selected by storage.mode and returns
// its close function.
func initStore(cfg *config.AgentConfig, log *slog.Logger, metrics *metric.Registry) (service.TokenStore, func() error, error) {
	if cfg.Storage.Mode == config.StorageMemory {
		log.Warn("using in-memory token store; the session will not survive a restart")
		return memory.New(), func() error { return nil }, nil
	}

	kvCfg := storage.DefaultKVConfig(cfg.Storage.DataDir)
	if cfg.Storage.GCInterval > 0 {
		kvCfg.GCInterval = cfg.Storage.GCInterval
	}
	engine, err := storage.NewBadgerEngine(kvCfg, log)
	if err != nil {
		return nil, nil, err
	}
	engine.RegisterMetrics(metrics.Registerer())

	var opts []storage.TokenStoreOption
	if cfg.Storage.EncryptionKey != "" {
		opts = append(opts, storage.WithEncryptionKey(cfg.Storage.EncryptionKey))
	}
	store, err := storage.NewBadgerTokenStore(engine, log, opts...)
	if err != nil {
		_ = engine.Close()
		return nil, nil, err
	}
	return store, engine.Close, nil
}
