package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/storefront-realtime/internal/api/http"
	"github.com/spec-kit/storefront-realtime/internal/api/http/handlers"
	"github.com/spec-kit/storefront-realtime/internal/auth"
	"github.com/spec-kit/storefront-realtime/internal/broadcast"
	"github.com/spec-kit/storefront-realtime/internal/channels"
	"github.com/spec-kit/storefront-realtime/internal/config"
	"github.com/spec-kit/storefront-realtime/internal/events"
	"github.com/spec-kit/storefront-realtime/internal/observability"
	"github.com/spec-kit/storefront-realtime/internal/persistence"
	"github.com/spec-kit/storefront-realtime/internal/realtime"
	"github.com/spec-kit/storefront-realtime/internal/repository"
	"github.com/spec-kit/storefront-realtime/internal/service"
	"github.com/spec-kit/storefront-realtime/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	layer, layerReady := newChannelLayer(ctx, cfg.Realtime, redis, logger)
	broadcaster := broadcast.New(layer, logger, cfg.Realtime.BroadcastTimeout)
	bus := events.NewQueueDispatcher(cfg.Realtime.BusWorkers, cfg.Realtime.BusQueueSize, logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(cfg.Auth, userRepo, tokens)
	orderService := service.NewOrderService(repository.NewOrderRepository(pool), bus, logger)
	contactService := service.NewContactService(repository.NewContactRepository(pool), bus, logger)
	chatService := service.NewChatService(service.ChatDependencies{
		ConversationRepo: repository.NewConversationRepository(pool),
		MessageRepo:      repository.NewMessageRepository(pool),
		ParticipantRepo:  repository.NewParticipantRepository(pool),
		UserRepo:         userRepo,
		Dispatcher:       bus,
		Logger:           logger,
		AutoAssign:       cfg.Chat.AutoAssign,
	})
	notificationService := service.NewNotificationService(bus, broadcaster, orderService, contactService, logger)
	stopWorker := worker.StartNotificationWorker(ctx, bus, notificationService, cfg.Realtime.BusDrainTimeout)

	hub := realtime.NewHub(realtime.HubDependencies{
		Layer:       layer,
		Broadcaster: broadcaster,
		Logger:      logger,
		Orders:      orderService,
		Contacts:    contactService,
		Chat:        chatService,
	}, realtime.OptionsFromConfig(cfg.Realtime, cfg.Notification))

	deps := map[string]handlers.Pinger{
		"postgres": pg,
		"redis":    redis,
	}
	if layerReady != nil {
		deps["channel_layer"] = layerReady
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, observability.NewMetrics(prometheus.DefaultRegisterer), cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps),
		Auth:           handlers.NewAuthHandler(authService),
		Orders:         handlers.NewOrdersHandler(orderService),
		Contacts:       handlers.NewContactsHandler(contactService),
		Chat:           handlers.NewChatHandler(chatService),
		WS:             handlers.NewWSHandler(ctx, hub, cfg.Realtime.MaxFrameBytes, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, userRepo),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// Cancelling ctx closes every socket. The bus runs on its own context and
	// drains afterwards.
	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	stopWorker()
}

// newChannelLayer picks the group backend. The redis layer is also returned
// as a readiness dependency.
func newChannelLayer(ctx context.Context, cfg config.RealtimeConfig, redis *persistence.Redis, logger *zap.Logger) (channels.Layer, handlers.Pinger) {
	if cfg.ChannelLayer != "redis" {
		return channels.NewMemoryLayer(), nil
	}
	layer := channels.NewRedisLayer(redis.Client, cfg.RedisChannelPrefix, cfg.ResubscribeBackoff, logger)
	go func() {
		if err := layer.Run(ctx); err != nil {
			logger.Error("channel layer stopped", zap.Error(err))
		}
	}()
	return layer, layer
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
