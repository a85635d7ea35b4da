// Package main is the entry point for the provision API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"provision/internal/domain/auth"
	"provision/internal/domain/notification"
	v1 "provision/internal/infrastructure/http/v1"
	"provision/internal/infrastructure/storage/postgres"
	"provision/internal/infrastructure/storage/postgres/auth_repo"
	"provision/internal/infrastructure/storage/postgres/notification_repo"
	"provision/pkg/config"
	"provision/pkg/logger"
	"provision/pkg/numerator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.Env == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Infow("starting provision server", "env", cfg.App.Env)

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	if cfg.DB.MaxConns > 0 {
		poolCfg.MaxConns = cfg.DB.MaxConns
	}
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}
	log.Info("database connection established")

	txManager := postgres.NewTxManager(pool)

	auditor, err := postgres.NewAuditStore(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit store", "error", err)
	}

	numeratorService := numerator.New(pool)

	// --- Notifications ---
	ruleEngine, err := notification.NewRuleEngine()
	if err != nil {
		log.Fatalw("failed to initialize notification rule engine", "error", err)
	}

	settingRepo := notification_repo.NewSettingRepo(txManager)
	sinks := []notification.Sink{notification.LogSink{}}
	if cfg.SMTP.Host != "" {
		sinks = append(sinks, notification.NewSMTPSink(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From))
		log.Infow("smtp notification sink enabled", "host", cfg.SMTP.Host)
	}
	dispatcher := notification.NewDispatcher(settingRepo, ruleEngine, sinks...)

	// --- Auth ---
	if cfg.JWT.Secret == "" {
		log.Fatal("PROVISION_JWT_SECRET is required")
	}
	jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
	if cfg.JWT.Issuer != "" {
		jwtConfig.Issuer = cfg.JWT.Issuer
	}
	if cfg.JWT.AccessTTL > 0 {
		jwtConfig.AccessTokenTTL = cfg.JWT.AccessTTL
	}
	jwtService := auth.NewJWTService(jwtConfig)

	userRepo := auth_repo.NewUserRepo(txManager)
	tokenRepo := auth_repo.NewTokenRepo(txManager)
	authService := auth.NewService(userRepo, tokenRepo, txManager, jwtService, auth.DefaultServiceConfig())

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		TxManager:    txManager,
		Pool:         pool,
		Logger:       log,
		JWTValidator: jwtService,
		AuthService:  authService,
		Numerator:    numeratorService,
		Auditor:      auditor,
		Dispatcher:   dispatcher,
		Rules:        ruleEngine,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
