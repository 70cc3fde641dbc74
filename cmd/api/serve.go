package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"sharesync/api/internal/app"
	"sharesync/api/internal/email"
	"sharesync/api/internal/logging"
	"sharesync/api/internal/metrics"
	"sharesync/api/internal/points"
	"sharesync/api/internal/realtime"
	"sharesync/api/internal/search"
	"sharesync/api/internal/session"
	"sharesync/api/internal/storage"
	"sharesync/api/internal/store"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.For("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()
	if err := migrate(ctx, db, cfg); err != nil {
		return err
	}
	dataStore := store.NewPostgresStore(db)

	deps := app.Deps{
		Store:   dataStore,
		Metrics: metrics.New(logging.For("metrics")),
		Checks:  map[string]func(context.Context) error{},
	}

	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisClient, err = session.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		defer redisClient.Close()
		logger.Info().Msg("using redis for sessions, leaderboard and realtime fan-out")
		deps.Sessions = session.NewRedisStoreWithClient(redisClient)
		deps.Board = points.NewBoard(redisClient)
		deps.Checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	} else {
		logger.Info().Msg("redis disabled; sessions in postgres, realtime is single-node")
	}

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
		deps.Search = search.NewService(meiliClient, search.NewPgSearch(db))
	} else {
		deps.Search = search.NewService(nil, search.NewPgSearch(db))
	}

	files, err := storage.New(storage.Config{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		return err
	}
	if files.Configured() {
		if err := files.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("object storage bucket check failed")
		}
		deps.Files = files
	} else {
		logger.Info().Msg("object storage disabled; uploads will be rejected")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		deps.Mailer = mailer
	} else {
		logger.Warn().Msg("SMTP not configured; verification and reset tokens are returned in responses")
	}

	hub := realtime.NewHub(deps.Metrics)
	broker := realtime.NewBroker(hub, redisClient)
	deps.Realtime = broker

	service := app.New(cfg, deps)
	if err := service.Bootstrap(ctx); err != nil {
		logger.Warn().Err(err).Msg("bootstrap error (will retry on next restart)")
	}

	realtimeHandler := realtime.NewHandler(hub, service, realtime.OriginPatterns(cfg.CORSOrigin))
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, deps.Metrics, realtimeHandler)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("ShareSync API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return broker.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown error")
		}
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shut down")
	return nil
}
