package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-authority/internal/api/http"
	"github.com/spec-kit/token-authority/internal/api/http/handlers"
	"github.com/spec-kit/token-authority/internal/auth"
	"github.com/spec-kit/token-authority/internal/config"
	"github.com/spec-kit/token-authority/internal/events"
	"github.com/spec-kit/token-authority/internal/observability"
	"github.com/spec-kit/token-authority/internal/persistence"
	"github.com/spec-kit/token-authority/internal/repository"
	"github.com/spec-kit/token-authority/internal/revocation"
	"github.com/spec-kit/token-authority/internal/secrets"
	"github.com/spec-kit/token-authority/internal/service"
	"github.com/spec-kit/token-authority/internal/upstream"
	"github.com/spec-kit/token-authority/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	httpClient := upstream.NewHTTPClient(cfg.Upstream)
	secretResolver := secrets.NewResolver(httpClient, cfg.Secrets)
	permissionClient := upstream.NewPermissionClient(httpClient, cfg.Upstream)
	identityClient := upstream.NewIdentityClient(httpClient, cfg.Upstream)

	ledger := repository.NewTokenLedger(pg.PoolHandle())
	revocationCache := revocation.NewCache(redis.Client, logger)
	accessResolver := service.NewAccessResolver(permissionClient, identityClient)

	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)

	tokenService := service.NewTokenService(*cfg, service.Dependencies{
		Ledger:      ledger,
		Secrets:     secretResolver,
		Resolver:    accessResolver,
		Revocations: revocationCache,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	metrics := observability.NewMetrics()

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	tokensHandler := handlers.NewTokensHandler(tokenService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          healthHandler,
		Tokens:          tokensHandler,
		ActorMiddleware: auth.NewActorMiddleware(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
