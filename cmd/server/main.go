package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"Lundawebserver/internal/auth"
	"Lundawebserver/internal/config"
	"Lundawebserver/internal/httpapi"
	"Lundawebserver/internal/notifications"
	"Lundawebserver/internal/service"
	"Lundawebserver/internal/store/postgres"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}

	logger := newLogger(cfg)

	var (
		authSvc          *service.AuthService
		gameSvc          *service.GameService
		resultsSvc       *service.ResultsService
		notificationsSvc *service.NotificationService
		dbPing           func(context.Context) error
	)

	if cfg.DBDSN != "" {
		pgPool, err := postgres.Open(context.Background(), cfg.DBDSN)
		if err != nil {
			logger.Error("db open failed", "err", err)
			os.Exit(1)
		}
		defer pgPool.Close()

		users := postgres.NewUsersStore(pgPool)
		sessions := postgres.NewSessionsStore(pgPool)
		games := postgres.NewGamesStore(pgPool)
		results := postgres.NewResultsStore(pgPool)
		tokens := postgres.NewNotificationTokensStore(pgPool)

		authSvc = &service.AuthService{
			Users:             users,
			Sessions:          sessions,
			SessionTTL:        cfg.SessionTTL,
			GoogleWebClientID: cfg.GoogleWebClientID,
			AppleServiceID:    cfg.AppleServiceID,
		}
		gameSvc = &service.GameService{Games: games}

		if cfg.FCMCredentialsFile != "" {
			sender, err := notifications.NewFCMSender(context.Background(), cfg.FCMProjectID, cfg.FCMCredentialsFile)
			if err != nil {
				logger.Error("fcm init failed", "err", err)
				os.Exit(1)
			}
			notificationsSvc = &service.NotificationService{
				Tokens: tokens,
				Users:  users,
				Sender: sender,
				Logger: logger,
			}
		} else {
			logger.Info("push notifications disabled, APP_FCM_CREDENTIALS_FILE not set")
		}

		resultsSvc = &service.ResultsService{
			Games:       games,
			Results:     results,
			Logger:      logger,
			MaxBatchOps: cfg.ResultsMaxBatch,
			OpHistory:   cfg.ResultsOpHistory,
			LockWait:    cfg.ResultsLockWait,
		}
		if notificationsSvc != nil {
			resultsSvc.Notifier = notificationsSvc
		}

		dbPing = pgPool.Ping
	}

	apiRouter := httpapi.NewRouter(httpapi.RouterOpts{
		Logger:        logger,
		IsProd:        cfg.IsProd(),
		DBPing:        dbPing,
		Auth:          authSvc,
		Games:         gameSvc,
		Results:       resultsSvc,
		Notifications: notificationsSvc,
		TokenCodec:    auth.NewTokenCodec([]byte(cfg.TokenSecret)),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiRouter,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "env", cfg.Env, "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
