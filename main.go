package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"feed-hub/auth"
	"feed-hub/broadcaster"
	"feed-hub/config"
	"feed-hub/driver"
	"feed-hub/fetcher"
	"feed-hub/logger"
	"feed-hub/queue"
	"feed-hub/repository"
	"feed-hub/rest"
	"feed-hub/scheduler"
	"feed-hub/service"
	"feed-hub/worker"
)

func main() {
	// ──────────── init ────────────
	logger.Init()
	log := logger.Logger

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := driver.InitDB(ctx, cfg.Database)
	if err != nil {
		log.Error("database init failed", "err", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient, err := driver.InitRedis(ctx, cfg.Redis.URL)
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// ──────────── wiring ────────────
	feeds := repository.NewFeedRepository(dbPool, log)
	articles := repository.NewArticleRepository(dbPool, log)
	subs := repository.NewSubscriptionRepository(dbPool, log)
	interactions := repository.NewInteractionRepository(dbPool, log)

	hub := broadcaster.NewHub(log)
	feedFetcher := fetcher.New(cfg.Fetch.Timeout, log)

	queueConfig := queue.Config{
		StreamKey:    cfg.Queue.StreamKey,
		GroupName:    cfg.Queue.GroupName,
		Workers:      cfg.Queue.Workers,
		BatchSize:    cfg.Queue.BatchSize,
		BlockTimeout: cfg.Queue.BlockTimeout,
	}
	jobQueue := queue.NewQueue(redisClient, queueConfig, log)

	syncService := service.NewSyncService(
		feeds, articles, subs, interactions, feedFetcher, hub, jobQueue, log)
	importService := service.NewImportService(feeds, subs, jobQueue, log)

	// ──────────── job workers ────────────
	dispatcher := worker.NewDispatcher(syncService, importService, hub, log)
	consumer := queue.NewConsumer(redisClient, queueConfig, dispatcher, log)
	if err := consumer.Start(ctx); err != nil {
		log.Error("job consumer start failed", "err", err)
		os.Exit(1)
	}
	defer consumer.Stop()

	// ──────────── refresh cron ────────────
	cron := scheduler.New(log)
	cron.Add(scheduler.Task{
		Name:     "refresh_all_feeds",
		Interval: cfg.Refresh.Interval,
		Timeout:  cfg.Refresh.SweepTimeout,
		Fn:       syncService.RefreshAll,
	})
	cron.Start(ctx)

	// ──────────── HTTP server ────────────
	e := echo.New()
	e.HideBanner = true
	handler := rest.NewHandler(jobQueue, hub, auth.NewVerifier(cfg.Auth.TokenSecret), log)
	rest.RegisterRoutes(e, handler)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           e,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	go func() {
		log.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	_ = srv.Shutdown(context.Background())
	cron.Shutdown()
}
