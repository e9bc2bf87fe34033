package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KotFed0t/papertrade/config"
	"github.com/KotFed0t/papertrade/data"
	"github.com/KotFed0t/papertrade/data/cache"
	"github.com/KotFed0t/papertrade/data/repository/postgres"
	"github.com/KotFed0t/papertrade/data/session"
	"github.com/KotFed0t/papertrade/internal/externalApi/quoteApi"
	"github.com/KotFed0t/papertrade/internal/reportGenerator/xlsxGenerator"
	"github.com/KotFed0t/papertrade/internal/scheduler"
	"github.com/KotFed0t/papertrade/internal/service/authService"
	"github.com/KotFed0t/papertrade/internal/service/ledgerService"
	"github.com/KotFed0t/papertrade/internal/transport/web"
	"github.com/KotFed0t/papertrade/internal/webserver"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config loaded", slog.String("logLevel", cfg.LogLevel), slog.String("httpAddr", cfg.HTTP.Addr))

	if err := run(cfg); err != nil {
		slog.Error("papertrade stopped", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	pgClient, err := data.NewPostgresClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient, err := data.NewRedisClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	quoteApiClient := quoteApi.New(cfg)

	reportGenerator := xlsxGenerator.New()

	ledgerSrv := ledgerService.New(pgRepo, redisCache, quoteApiClient, reportGenerator)
	authSrv := authService.New(cfg, pgRepo)

	sched, err := scheduler.New(cfg.Jobs.Timeout)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	err = sched.NewIntervalJob("warm quotes cache", ledgerSrv.WarmQuotesCache, cfg.Jobs.WarmQuotesCacheInterval, true)
	if err != nil {
		return fmt.Errorf("schedule warm quotes cache: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	webController := web.NewController(cfg, ledgerSrv, authSrv, redisSession)

	router, err := web.NewRouter(cfg, webController, redisSession)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	server := webserver.New(cfg, router)
	server.Start()
	defer server.Stop()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case s := <-interrupt:
		slog.Info("got signal, shutting down", slog.String("signal", s.String()))
	case err = <-server.Notify():
		if err != nil {
			return fmt.Errorf("webserver: %w", err)
		}
	}

	return nil
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
