package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/kcalbot/internal/api"
	"github.com/kalambet/kcalbot/internal/bot"
	"github.com/kalambet/kcalbot/internal/config"
	"github.com/kalambet/kcalbot/internal/conversation"
	"github.com/kalambet/kcalbot/internal/nutrition"
	"github.com/kalambet/kcalbot/internal/storage"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bot (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the bot is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "kcalbot version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging.
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Open storage.
	printStep("opening storage in %s", cfg.Storage.DataDir)
	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	// Build the dialogue engine and the Telegram transport.
	lookup := nutrition.New(cfg.Nutrition.BaseURL, cfg.Nutrition.APIKey)
	engine := conversation.New(store, lookup)

	tgBot, err := bot.New(cfg.Telegram.Token, engine)
	if err != nil {
		return err
	}
	printSuccess("authorized as @%s", tgBot.Username())

	// Ops HTTP server: health check plus authenticated summary routes.
	appHandler := api.NewAppHandler(api.AppDeps{
		Store: store,
		Token: cfg.Server.APIToken,
	})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: appHandler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("telegram polling started")
		return tgBot.Run(gctx)
	})

	g.Go(func() error {
		slog.Info("ops server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	fmt.Fprintln(os.Stderr, "shutting down...")
	return err
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		printError("kcalbot is not running")
		printStatus("checked", "%s", healthURL)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		printError("health endpoint returned status %d", resp.StatusCode)
		return nil
	}

	printSuccess("kcalbot is running")
	printStatus("ops endpoint", "%s", healthURL)
	printStatus("data dir", "%s", cfg.Storage.DataDir)
	return nil
}
