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

	"mmp-tracker/internal/cache"
	"mmp-tracker/internal/config"
	"mmp-tracker/internal/database"
	"mmp-tracker/internal/event"
	"mmp-tracker/internal/fallback"
	"mmp-tracker/internal/handler"
	"mmp-tracker/internal/metrics"
	"mmp-tracker/internal/middleware"
	"mmp-tracker/internal/repository"
	"mmp-tracker/internal/router"
	"mmp-tracker/internal/service"
	"mmp-tracker/internal/websocket"
)

const tokenPruneInterval = time.Hour

type App struct {
	server       *http.Server
	db           *database.DB
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.Open(context.Background(), database.Options{
		URL:            cfg.DatabaseURL,
		MaxConns:       cfg.DBMaxConns,
		MinConns:       cfg.DBMinConns,
		ConnectTimeout: cfg.DBConnectTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	mirror, err := fallback.NewMirror(cfg.FallbackDir)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize fallback mirror: %w", err)
	}
	slog.Info("fallback mirror ready", "path", mirror.Path())

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	mmpRepo := repository.NewMMPRepository(pool)
	budgetRepo := repository.NewBudgetRepository(pool)
	slog.Info("database ready")

	m := metrics.New()
	bus := event.NewBus()
	hub := websocket.NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	auditService := service.NewAuditService(auditRepo, m)
	authService := service.NewAuthService(userRepo, tokenRepo, auditService, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err := authService.BootstrapAdmin(ctx, cfg.BootstrapAdminPassword); err != nil {
		cancel()
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	mmpService := service.NewMMPService(mmpRepo, cache.NewMMPCache(), mirror, auditService, bus, m)
	budgetService := service.NewBudgetService(budgetRepo, mmpService, auditService, bus, m)
	dashboardService := service.NewDashboardService(mmpService, budgetService, auditService)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(authService), router.Handlers{
		Auth:         handler.NewAuthHandler(authService),
		User:         handler.NewUserHandler(authService),
		MMP:          handler.NewMMPHandler(mmpService),
		Verification: handler.NewVerificationHandler(mmpService),
		Budget:       handler.NewBudgetHandler(budgetService),
		Audit:        handler.NewAuditHandler(auditService),
		Dashboard:    handler.NewDashboardHandler(dashboardService),
		WS:           handler.NewWSHandler(hub, cfg.CORSOrigins),
	}, m, db.Health)

	go pruneTokens(ctx, authService, tokenPruneInterval)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		db:     db,
		cleanupFuncs: []func(){
			cancel,
			func() {
				db.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func pruneTokens(ctx context.Context, auth *service.AuthService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.PruneTokens(ctx)
			if err != nil {
				slog.Warn("refresh token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired refresh tokens removed", "count", n)
			}
		}
	}
}
