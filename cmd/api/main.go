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

	"callkit/internal/auth"
	"callkit/internal/calllog"
	"callkit/internal/config"
	"callkit/internal/gateway"
	"callkit/internal/httpapi"
	"callkit/internal/minutes"
	"callkit/internal/notify"
	"callkit/internal/signaling"
	"callkit/pkg/logger"
	"callkit/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Service wiring, storage up to signaling.
	logsSvc := calllog.NewService(calllog.NewPostgresRepository(db))
	minutesSvc := minutes.NewService(minutes.NewPostgresRepository(db))
	pushSvc := notify.NewService(notify.NewRedisSender(rdb), minutesSvc, log)

	signalingSvc := signaling.NewService(
		signaling.NewPostgresRepository(db),
		signaling.NewRedisBus(rdb),
		logsSvc,
		minutesSvc,
		pushSvc,
		signaling.NewRedisSlotGuard(rdb, cfg.Call.ActiveSlotTTL),
		signaling.Config{
			RingTimeout: cfg.Call.RingTimeout,
			GraceDelete: cfg.Call.IntentGraceDelete,
		},
		log,
	)
	defer signalingSvc.Close()

	hub := gateway.NewHub(signalingSvc, gateway.NewRedisPushSource(rdb), log)
	defer hub.Close()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, auth.RequireAccessToken(authManager), httpapi.Handlers{
		Auth:      authManager,
		Signaling: signalingSvc,
		Logs:      logsSvc,
		Minutes:   minutesSvc,
	}, hub, db, rdb)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
