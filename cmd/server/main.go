package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/config"
	"github.com/hongminglow/dunes-blog/internal/logging"
	"github.com/hongminglow/dunes-blog/internal/server"
)

func main() {
	loadLocalEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	userStore, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer userStore.Close()

	revocations, closeRevocations, err := server.OpenRevocations(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRevocations()

	srv, err := server.New(cfg, server.Deps{
		Store:       userStore,
		Revocations: revocations,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("atlantic-dunes listening",
			zap.String("addr", cfg.HTTPAddress()),
			zap.String("env", cfg.Env),
			zap.String("store", cfg.StoreDriver),
			zap.String("revocation", cfg.RevocationStore),
		)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case err := <-errCh:
		return err
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Warn("graceful shutdown error", zap.Error(err))
	}
	return nil
}

func loadLocalEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found; relying on existing environment")
	}
}
