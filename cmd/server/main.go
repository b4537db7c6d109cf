// Command server starts the vidshare API HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vidshare/internal/api"
	"vidshare/internal/auth"
	"vidshare/internal/config"
	"vidshare/internal/observability/logging"
	"vidshare/internal/observability/metrics"
	"vidshare/internal/ranking"
	"vidshare/internal/realtime"
	"vidshare/internal/server"
	"vidshare/internal/serverutil"
	"vidshare/internal/storage"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults to $"+config.PathEnvVar+")")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.Init(logging.Config{
		Level:     cfg.Log.Level,
		Format:    cfg.Log.Format,
		AddSource: cfg.Log.AddSource,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	recorder := metrics.Default()
	recorder.RegisterRuntimeCollectors()

	hub := realtime.NewHub(realtime.HubConfig{
		Logger:  logger,
		Metrics: recorder,
	})
	bus, err := openBus(cfg.Realtime, logger)
	if err != nil {
		return err
	}
	// releases run newest first, after the hub has dropped its connections.
	var releases []serverutil.ShutdownHook
	release := func(hook serverutil.ShutdownHook) {
		releases = append([]serverutil.ShutdownHook{hook}, releases...)
	}
	abort := func(err error) error {
		for _, hook := range releases {
			if closeErr := hook(context.Background()); closeErr != nil {
				logger.Warn("release after startup failure", "error", closeErr)
			}
		}
		return err
	}
	if bus != nil {
		release(func(context.Context) error { return bus.Close() })
	}
	notifier := realtime.NewNotifier(hub, bus, realtime.NotifierConfig{
		Logger:          logger,
		PublishTimeout:  cfg.Realtime.PublishTimeout,
		BreakerFailures: cfg.Realtime.BreakerFailures,
		BreakerCooldown: cfg.Realtime.BreakerCooldown,
	})

	store, err := openStore(ctx, cfg.Storage, storeOptions(cfg, logger, recorder, notifier))
	if err != nil {
		return abort(err)
	}
	release(func(context.Context) error {
		store.Close()
		return nil
	})

	revocations, closeRevocations, err := openRevocations(ctx, cfg)
	if err != nil {
		return abort(err)
	}
	release(closeRevocations)
	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.Issuer,
		TTL:    cfg.Auth.TokenTTL,
		Store:  revocations,
	})
	if err != nil {
		return abort(err)
	}

	handler := api.NewHandler(store, tokens)
	handler.Logger = logging.WithComponent(logger, "api")
	handler.Ranker = ranking.New(ranking.WithWeights(cfg.Ranking.Weights), ranking.WithMetrics(recorder))
	handler.Events = notifier
	handler.FeedLimit = cfg.Ranking.FeedLimit
	handler.AllowSelfSignup = cfg.Auth.AllowSignup
	handler.SessionCookiePolicy.Domain = cfg.Auth.CookieDomain
	handler.SessionCookiePolicy.AlwaysSecure = cfg.Auth.CookieSecure

	wsHandler := realtime.NewHandler(realtime.HandlerConfig{
		Hub:               hub,
		Videos:            store,
		Viewer:            api.ViewerID,
		Logger:            logger,
		Metrics:           recorder,
		AllowedOrigins:    cfg.Realtime.AllowedOrigins,
		SendBuffer:        cfg.Realtime.SendBuffer,
		WriteTimeout:      cfg.Realtime.WriteTimeout,
		PongWait:          cfg.Realtime.PongWait,
		MessagesPerSecond: cfg.Realtime.MessagesPerSec,
		MessageBurst:      cfg.Realtime.MessageBurst,
	})

	srv, err := server.New(handler, server.Config{
		Addr: cfg.Server.Addr,
		TLS: server.TLSConfig{
			CertFile: cfg.Server.TLSCert,
			KeyFile:  cfg.Server.TLSKey,
		},
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		RateLimit: server.RateLimitConfig{
			GlobalRPS:     cfg.Server.RateLimit.GlobalRPS,
			GlobalBurst:   cfg.Server.RateLimit.GlobalBurst,
			PerIP:         cfg.Server.RateLimit.PerIP,
			PerIPWindow:   cfg.Server.RateLimit.PerIPWindow,
			LoginLimit:    cfg.Server.RateLimit.LoginLimit,
			LoginWindow:   cfg.Server.RateLimit.LoginWindow,
			RedisAddr:     cfg.Server.RateLimit.RedisAddr,
			RedisPassword: cfg.Server.RateLimit.RedisPassword,
		},
		Logger:      logger,
		AuditLogger: logging.WithComponent(logger, "audit"),
		Metrics:     recorder,
		Realtime:    wsHandler,
	})
	if err != nil {
		return abort(err)
	}

	worker := &maintenance{
		store:  store,
		tokens: tokens,
		logger: logging.WithComponent(logger, "maintenance"),
		now:    time.Now,
		repair: cfg.Maintenance.RepairDrift,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		hooks := append([]serverutil.ShutdownHook{func(context.Context) error {
			hub.CloseAll()
			return nil
		}}, releases...)
		return srv.Run(groupCtx, cfg.Server.ShutdownTimeout, nil, hooks...)
	})
	group.Go(func() error {
		return notifier.Run(groupCtx)
	})
	group.Go(func() error {
		return worker.run(groupCtx, cfg.Maintenance.Interval, cfg.Maintenance.RunOnStartup)
	})
	return group.Wait()
}

// storeOptions passes the bare logger; the store tags its own component.
func storeOptions(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder, notifier storage.CommentNotifier) []storage.Option {
	return []storage.Option{
		storage.WithLogger(logger),
		storage.WithMetrics(recorder),
		storage.WithCommentNotifier(notifier),
		storage.WithScoreModel(cfg.Ranking.Score),
		storage.WithPersistTimeout(cfg.Storage.PersistTimeout),
	}
}

func openStore(ctx context.Context, cfg config.StorageConfig, opts []storage.Option) (storage.Repository, error) {
	switch cfg.Driver {
	case "postgres":
		pg := cfg.Postgres
		if pg.MaxConns > 0 || pg.MinConns > 0 {
			opts = append(opts, storage.WithPostgresPoolLimits(pg.MaxConns, pg.MinConns))
		}
		if pg.AcquireTimeout > 0 {
			opts = append(opts, storage.WithPostgresAcquireTimeout(pg.AcquireTimeout))
		}
		if pg.AppName != "" {
			opts = append(opts, storage.WithPostgresApplicationName(pg.AppName))
		}
		store, err := storage.NewPostgresRepository(ctx, pg.DSN, opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres datastore: %w", err)
		}
		return store, nil
	default:
		store, err := storage.NewJSONRepository(cfg.DataPath, opts...)
		if err != nil {
			return nil, fmt.Errorf("open json datastore: %w", err)
		}
		return store, nil
	}
}

// openBus returns nil for the in-process bus so the notifier broadcasts
// straight to the local hub.
func openBus(cfg config.RealtimeConfig, logger *slog.Logger) (realtime.Bus, error) {
	if cfg.Bus != "redis" {
		return nil, nil
	}
	bus, err := realtime.NewRedisBus(realtime.RedisBusConfig{
		Addrs:         cfg.Redis.Addrs,
		Username:      cfg.Redis.Username,
		Password:      cfg.Redis.Password,
		MasterName:    cfg.Redis.MasterName,
		ChannelPrefix: cfg.Redis.ChannelPrefix,
		PoolSize:      cfg.Redis.PoolSize,
		Logger:        logger,
		TLS: realtime.RedisTLSConfig{
			CAFile:             cfg.Redis.TLSCA,
			CertFile:           cfg.Redis.TLSCert,
			KeyFile:            cfg.Redis.TLSKey,
			ServerName:         cfg.Redis.TLSServerName,
			InsecureSkipVerify: cfg.Redis.TLSSkipVerify,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open realtime bus: %w", err)
	}
	return bus, nil
}

func openRevocations(ctx context.Context, cfg config.Config) (auth.RevocationStore, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if cfg.Auth.RevocationStore != "postgres" {
		return auth.NewMemoryRevocationStore(), noop, nil
	}
	store, err := auth.NewPostgresRevocationStore(ctx, cfg.RevocationDSN())
	if err != nil {
		return nil, noop, fmt.Errorf("open token revocation store: %w", err)
	}
	return store, store.Close, nil
}
