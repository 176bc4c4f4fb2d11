package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/cv-extractor/internal/common"
	"github.com/joseph-ayodele/cv-extractor/internal/ingest"
	"github.com/joseph-ayodele/cv-extractor/internal/server"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stack, err := server.NewStack(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	if err := stack.DB.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		stack.DB.Close()
		os.Exit(1)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		stack.DB.Close()
		os.Exit(1)
	}
	admin := server.NewAdmin(stack.DB, logger)
	go func() {
		if err := admin.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	if err := stack.Queue.Start(ctx); err != nil {
		logger.Error("failed to start queue", "error", err)
		admin.Stop()
		stack.DB.Close()
		os.Exit(1)
	}
	admin.SetServing(true)
	go admin.Probe(ctx, 15*time.Second, 3*time.Second)

	if cfg.Ingest.WatchDir != "" {
		go func() {
			err := ingest.Watch(ctx, stack.Ingestor, cfg.Ingest.UserID, ingest.WatchConfig{
				Roots:       []string{cfg.Ingest.WatchDir},
				AllowedExts: ingest.ExtSet(cfg.Ingest.Extensions),
				InitialScan: true,
				Debounce:    cfg.Ingest.Debounce,
				SkipHidden:  true,
				Logger:      logger,
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("ingest watcher stopped", "dir", cfg.Ingest.WatchDir, "error", err)
			}
		}()
	}

	logger.Info("cvextractord started", "addr", cfg.Server.GRPCAddr, "models", cfg.LLM.Models)
	<-ctx.Done()
	logger.Info("shutting down")

	admin.SetServing(false)
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	stack.Close(sctx)
	admin.Stop()
}
