package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dearie-ai/dearie/internal/admin"
	"github.com/dearie-ai/dearie/internal/bot"
	"github.com/dearie-ai/dearie/internal/config"
	"github.com/dearie-ai/dearie/internal/dedup"
	"github.com/dearie-ai/dearie/internal/oracle"
	"github.com/dearie-ai/dearie/internal/store"
	"github.com/dearie-ai/dearie/internal/sweeper"
	"github.com/dearie-ai/dearie/internal/telegram"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "set-webhook":
		if err := runSetWebhook(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "admin":
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Println("dearie v0.1.0")
	default:
		usage()
		os.Exit(2)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config/dearie.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportCaller: false, Prefix: cfg.ServerName})
	setLogLevel(logger, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.OpenSQLite(ctx, cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var guard dedup.Guard = dedup.NoopGuard{}
	if cfg.RedisAddr != "" {
		rg, err := dedup.NewRedisGuard(ctx, cfg.RedisAddr, time.Duration(cfg.DedupTTLSeconds)*time.Second)
		if err != nil {
			return err
		}
		guard = rg
		logger.Info("redis dedupe enabled", "addr", cfg.RedisAddr)
	}
	defer guard.Close()

	client := oracle.NewChatClient(oracle.Config{
		BaseURL: cfg.OracleBaseURL,
		APIKey:  cfg.OracleAPIKey,
		Model:   cfg.OracleModel,
		Timeout: time.Duration(cfg.OracleTimeoutSeconds) * time.Second,
	}, logger)

	tg := telegram.NewClient(cfg.TelegramToken, cfg.TelegramBaseURL)

	b := bot.New(st, client, tg, guard, logger, bot.Options{
		HistoryLimit:    cfg.HistoryLimit,
		EmotionLookback: cfg.EmotionLookback,
	})

	go sweeper.Start(ctx, logger,
		time.Duration(cfg.SweepIntervalSec)*time.Second,
		time.Duration(cfg.IdleCutoffHours)*time.Hour,
		st,
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.WebhookPath, bot.WebhookHandler(b, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening for webhook updates", "addr", cfg.ListenAddr, "path", cfg.WebhookPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", "error", err)
	}
	logger.Info("shut down cleanly")
	return nil
}

func runSetWebhook(args []string) error {
	fs := flag.NewFlagSet("set-webhook", flag.ContinueOnError)
	configPath := fs.String("config", "config/dearie.yaml", "Path to config file")
	baseURL := fs.String("url", "", "Public base URL (overrides webhook_url from config)")
	remove := fs.Bool("delete", false, "Delete the registered webhook instead")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	if cfg.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tg := telegram.NewClient(cfg.TelegramToken, cfg.TelegramBaseURL)
	if *remove {
		if err := tg.DeleteWebhook(ctx); err != nil {
			return err
		}
		fmt.Println("webhook deleted")
		return nil
	}

	public := cfg.WebhookURL
	if *baseURL != "" {
		public = *baseURL
	}
	if public == "" {
		return fmt.Errorf("no public URL: set webhook_url in config or pass --url")
	}
	target := public + cfg.WebhookPath
	if err := tg.SetWebhook(ctx, target); err != nil {
		return err
	}
	fmt.Println("webhook set:", target)
	return nil
}

func runAdmin(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	configPath := fs.String("config", "config/dearie.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	st, err := store.OpenSQLite(context.Background(), cfg.DBPath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return admin.Run(ctx, st)
}

func setLogLevel(logger *log.Logger, level string) {
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func usage() {
	fmt.Print(`dearie

Usage:
  dearie serve [--config path]
  dearie set-webhook [--config path] [--url https://public.host] [--delete]
  dearie admin [--config path]
  dearie version
`)
}
