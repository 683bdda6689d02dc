package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/huiui/hello-antd-role/cmd/server/cli"
	"github.com/huiui/hello-antd-role/internal/app"
	"github.com/huiui/hello-antd-role/internal/auth"
	"github.com/huiui/hello-antd-role/internal/menus"
	"github.com/huiui/hello-antd-role/internal/observability"
	"github.com/huiui/hello-antd-role/internal/platform/cache"
	"github.com/huiui/hello-antd-role/internal/platform/db"
	"github.com/huiui/hello-antd-role/internal/rbac"
	"github.com/huiui/hello-antd-role/internal/roles"
	"github.com/huiui/hello-antd-role/internal/token"
	"github.com/huiui/hello-antd-role/internal/users"
	"github.com/huiui/hello-antd-role/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := cli.Run(ctx, cfg.Asynq(), os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(2)
		}
		return
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	// The capability cache degrades to direct loads without Redis.
	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Warn("redis unavailable, capability cache disabled", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	tokens, err := token.NewService(cfg.TokenSecret, cfg.TokenTTL, cfg.TokenIssuer)
	if err != nil {
		return err
	}
	hasher, err := auth.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()
	metrics.Registerer().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authRepo := auth.NewRepository(pool)
	capabilityCache := rbac.NewCapabilityCache(redisClient, cfg.CapabilityCacheTTL, logger)
	rbacService := rbac.NewService(rbac.NewRepository(pool), nil, capabilityCache, logger)
	rbacMiddleware := rbac.Middleware{
		Tokens:      tokens,
		Permissions: rbacService,
		Registry:    rbacService.Registry(),
		Logger:      logger,
		Metrics:     metrics,
	}

	authService := auth.NewService(authRepo, hasher, tokens)
	usersService := users.NewService(users.NewRepository(pool), authRepo, hasher, rbacService)
	menusService := menus.NewService(menus.NewRepository(pool))

	redisOpts := cfg.Asynq()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	queue := jobs.NewClient(redisOpts)
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	// New permission names ship with the binary; the worker writes them.
	if _, err := queue.EnqueueCatalogSync(ctx, "startup"); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.Warn("enqueue catalog sync", slog.Any("error", err))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		RBACMiddleware:     rbacMiddleware,
		AuthHandler:        auth.NewHandler(logger, authService, rbacService, rbacMiddleware, metrics, app.CredentialLimiter(cfg.AuthRateLimit)),
		RolesHandler:       roles.NewHandler(logger, rbacService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		MenusHandler:       menus.NewHandler(logger, menusService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
		CapabilityCache:    capabilityCache,
		AccessLog:          !cfg.IsProduction(),
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
