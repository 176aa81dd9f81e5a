package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/framecast/framecast-agent/internal/api"
	"github.com/framecast/framecast-agent/internal/config"
	"github.com/framecast/framecast-agent/internal/db"
	"github.com/framecast/framecast-agent/internal/download"
	"github.com/framecast/framecast-agent/internal/encode"
	"github.com/framecast/framecast-agent/internal/exporter"
	"github.com/framecast/framecast-agent/internal/exportjob"
	"github.com/framecast/framecast-agent/internal/logging"
	"github.com/framecast/framecast-agent/internal/media"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	if err := os.MkdirAll(cfg.OutputDir(), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting framecast agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := exportjob.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Println("║                      FRAMECAST AGENT                      ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Version:    %-45s ║\n", config.Version)
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	decoder := media.NewFFmpeg(cfg.FFmpegPath(), cfg.FFprobePath(), logger)
	newEncoder := func() encode.VideoEncoder {
		return encode.NewFFmpegEncoder(cfg.FFmpegPath(), logger)
	}
	exp := exporter.New(decoder, newEncoder, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := exportjob.NewRunner(repo, exp, cfg.OutputDir(), logger)
	go runner.Start(ctx)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Repository: repo,
		Runner:     runner,
		Downloads:  download.NewServer(logger),
		Logger:     logger,
		StartTime:  startTime,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig)

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo exportjob.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
