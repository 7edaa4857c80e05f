package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/barrinalo/CATMAID/internal/config"
	"github.com/barrinalo/CATMAID/internal/handler"
	"github.com/barrinalo/CATMAID/internal/live"
	"github.com/barrinalo/CATMAID/internal/repository"
	"github.com/barrinalo/CATMAID/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := sqlx.Connect("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := repository.InitSchema(context.Background(), db); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	slog.Info("database connected")

	userRepo := repository.NewUserRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	changeRequestRepo := repository.NewChangeRequestRepository(db)
	txLogRepo := repository.NewTransactionLogRepository()
	txRunner := repository.NewTxRunner(db)

	hub := live.NewHub()

	authSvc := service.NewAuthService(userRepo, service.AuthConfig{
		GoogleClientID:     cfg.GoogleClientID,
		GoogleClientSecret: cfg.GoogleClientSecret,
		GitHubClientID:     cfg.GitHubClientID,
		GitHubClientSecret: cfg.GitHubClientSecret,
		JWTSecret:          cfg.JWTSecret,
		FrontendURL:        cfg.FrontendURL,
	})
	auditSvc := service.NewAuditService(txRunner, txLogRepo)
	inboxSvc := service.NewInboxService(messageRepo, changeRequestRepo, hub, auditSvc)

	authHandler := handler.NewAuthHandler(authSvc)
	inboxHandler := handler.NewInboxHandler(inboxSvc)
	wsHandler := handler.NewWSHandler(hub, cfg.FrontendURL)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewAppValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler

	e.Use(echomw.RequestID())
	e.Use(handler.RequestLogger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderContentType},
		ExposeHeaders:    []string{echo.HeaderXRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")

	// Auth routes (public)
	api.GET("/auth/:provider", authHandler.Redirect)
	api.GET("/auth/:provider/callback", authHandler.Callback)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Protected routes
	protected := api.Group("", handler.JWTAuth(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/messages", inboxHandler.List)
	protected.GET("/messages/latest-unread-date", inboxHandler.LatestUnreadDate)
	protected.POST("/messages/:id/read", inboxHandler.MarkRead)
	protected.POST("/internal/messages", inboxHandler.Send)

	protected.GET("/ws", wsHandler.Attach)

	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 30 * time.Second
	e.Server.IdleTimeout = 60 * time.Second

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port)
		errCh <- e.Start(fmt.Sprintf(":%d", cfg.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
