package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"referral-bot/config"
	"referral-bot/db"
	"referral-bot/internal/bot"
	"referral-bot/internal/conversation"
	"referral-bot/internal/logging"
	"referral-bot/internal/metrics"
	"referral-bot/internal/ratelimit"
	"referral-bot/internal/sheets"
	"referral-bot/internal/transport"
	"referral-bot/internal/withdrawal"
)

func main() {
	configFlag := flag.String("config", "", "path to config.json or config.toml")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	configPath := resolveConfigPath(*configFlag)
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config %s: %v", configPath, err)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := logging.Setup(logging.Options{
		Service: "referral-bot",
		Env:     cfg.Env,
		File:    cfg.LogFile,
		Level:   level,
	})
	logger.Info("starting referral bot", "config", configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

// resolveConfigPath prefers the flag, then CONFIG_PATH, then config/config.json
// next to the executable, then the working directory
func resolveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	if exePath, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exePath), "config", "config.json")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return filepath.Join("config", "config.json")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, m, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	var dialogs conversation.StateStore
	if cfg.DialogDBPath != "" {
		if dir := filepath.Dir(cfg.DialogDBPath); dir != "." {
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return err
			}
		}
		dialogStore, err := db.NewDialogStore(cfg.DialogDBPath)
		if err != nil {
			return err
		}
		defer dialogStore.Close()
		dialogs = dialogStore
	}

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		redisLimiter, err := ratelimit.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RateLimitPerMin, time.Minute)
		if err != nil {
			logger.Warn("redis unavailable, running without rate limit", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer redisLimiter.Close()
			limiter = redisLimiter
		}
	}

	// Sheets is optional; the bot keeps running when it cannot be reached
	var audit withdrawal.AuditSink
	if cfg.Sheets.SpreadsheetID != "" {
		payoutLog, err := sheets.NewPayoutLog(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.TokenFile, cfg.Sheets.SpreadsheetID, cfg.Sheets.Range)
		if err != nil {
			logger.Warn("failed to initialize Google Sheets, payouts will not be logged", "error", err)
		} else {
			audit = payoutLog
		}
	}

	tg, err := transport.NewTelegram(cfg.BotToken)
	if err != nil {
		return err
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = tg.Username()
	}
	logger.Info("authorized on account", "username", tg.Username())

	b, err := bot.NewBot(bot.Options{
		Config:    cfg,
		Messenger: tg,
		Store:     store,
		Dialogs:   dialogs,
		Limiter:   limiter,
		Audit:     audit,
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		return err
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.API.GetUpdatesChan(u)
	go func() {
		<-ctx.Done()
		tg.API.StopReceivingUpdates()
	}()

	logger.Info("bot started")
	return b.Start(ctx, updates)
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (db.Store, error) {
	if cfg.MongoURI == "" {
		logger.Warn("mongo_uri is not set, using in-memory store")
		return db.NewMemoryStore(), nil
	}
	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return db.NewMongoStore(connectCtx, cfg.MongoURI, cfg.MongoDB)
}
