package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-user-accounts/internal/config"
	"go-user-accounts/internal/database"
	"go-user-accounts/internal/event"
	"go-user-accounts/internal/handler"
	"go-user-accounts/internal/media"
	"go-user-accounts/internal/middleware"
	"go-user-accounts/internal/repository"
	"go-user-accounts/internal/router"
	"go-user-accounts/internal/service"
	"go-user-accounts/internal/token"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (_ *App, err error) {
	ctx := context.Background()
	a := &App{}
	defer func() {
		if err != nil {
			a.cleanup()
		}
	}()

	codec, err := token.NewCodec(cfg.Token())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onShutdown(db.Close)

	if err := db.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	userRepo := repository.NewUserRepository(db.Pool)
	channelRepo := repository.NewChannelRepository(db.Pool)
	slog.Info("database ready")

	var profileCache service.ProfileCache
	if cfg.RedisAddr != "" {
		redisClient, redisErr := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if redisErr != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", redisErr)
		}
		a.onShutdown(func() { _ = redisClient.Close() })
		profileCache = repository.NewProfileCache(redisClient, cfg.ProfileCacheTTL)
		slog.Info("channel profile cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ProfileCacheTTL)
	}

	mediaStore, mediaDir, err := newMediaStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	bus := event.NewBus()
	consumeCtx, stopConsumers := context.WithCancel(context.Background())
	a.onShutdown(stopConsumers)
	go event.Consume(consumeCtx, bus, event.LogEvent)

	if cfg.AMQPURL != "" {
		forwarder, amqpErr := event.NewAMQPForwarder(cfg.AMQPURL, cfg.AMQPQueue)
		if amqpErr != nil {
			return nil, fmt.Errorf("failed to connect to amqp: %w", amqpErr)
		}
		a.onShutdown(forwarder.Close)
		go event.Consume(consumeCtx, bus, forwarder.Forward)
		slog.Info("event forwarding enabled", "queue", cfg.AMQPQueue)
	}

	sessions := service.NewSessionService(userRepo, codec, bus)
	accounts := service.NewAccountService(userRepo, mediaStore, media.NewNormalizer(cfg.MediaMaxDimension), profileCache, bus)
	channels := service.NewChannelService(channelRepo, profileCache)

	exposeDetails := !cfg.IsProduction()
	cookies := handler.CookieConfig{
		Secure:     cfg.CookieSecure,
		AccessTTL:  codec.AccessTTL(),
		RefreshTTL: codec.RefreshTTL(),
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(codec), router.Handlers{
		Auth: handler.NewAuthHandler(sessions, accounts, cookies, exposeDetails),
		User: handler.NewUserHandler(accounts, channels, exposeDetails),
	}, router.Options{
		Health:   db,
		MediaDir: mediaDir,
	})

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return a, nil
}

// newMediaStore also returns the directory to serve when media lives on local disk.
func newMediaStore(ctx context.Context, cfg *config.Config) (media.Store, string, error) {
	if cfg.MediaBackend == config.MediaBackendS3 {
		store, err := media.NewS3Store(ctx, media.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			Local:     cfg.S3Local,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", err
		}
		slog.Info("media stored in s3", "bucket", cfg.S3Bucket, "local", cfg.S3Local)
		return store, "", nil
	}

	store, err := media.NewLocalStore(cfg.MediaRoot, cfg.MediaPublicURL)
	if err != nil {
		return nil, "", err
	}
	slog.Info("media stored on disk", "root", store.RootAbs())
	return store, store.RootAbs(), nil
}

func (a *App) onShutdown(fn func()) {
	a.cleanupFuncs = append(a.cleanupFuncs, fn)
}

// cleanup runs in reverse registration order.
func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
	a.cleanupFuncs = nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
