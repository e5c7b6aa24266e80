package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	config "moagem-api/configs"
	"moagem-api/pkg/logger"
	"moagem-api/pkg/observability"
	"moagem-api/pkg/server"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}

func run() error {
	// .envファイルを読み込み
	if err := godotenv.Load(); err != nil {
		stdlog.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		log.Warn("⚠️ トレーシングを初期化できませんでした", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Warn("トレーシングの停止に失敗", zap.Error(err))
		}
	}()

	r, err := server.NewRouter(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("🚀 サーバーを起動します", zap.String("addr", srv.Addr), zap.String("provider", cfg.AdvisorProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("🛑 サーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AdvisorTimeout+5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
