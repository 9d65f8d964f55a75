package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sapliy/editorial-notifications/internal/config"
	"github.com/sapliy/editorial-notifications/internal/notification"
	"github.com/sapliy/editorial-notifications/internal/notification/handlers"
	"github.com/sapliy/editorial-notifications/internal/workflowdb"
	"github.com/sapliy/editorial-notifications/pkg/database"
	"github.com/sapliy/editorial-notifications/pkg/observability"
)

// app holds the wired service.
type app struct {
	cfg    *config.Config
	logger *observability.Logger
	db     *sql.DB
	redis  *redis.Client
	engine *notification.Engine
}

func newLogger() *observability.Logger {
	logger := observability.NewLogger("notifications", v.GetString("log_level"))
	slog.SetDefault(logger.Logger)
	return logger
}

func buildApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*app, error) {
	db, err := database.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(db); err != nil {
			db.Close()
			return nil, err
		}
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WarnContext(ctx, "redis unavailable, caches and mail ledger degrade to the database", "error", err)
	}

	secret, err := resolveSecret(ctx, cfg.Unsubscribe)
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := notification.NewTokenCodec(secret)
	if err != nil {
		db.Close()
		return nil, err
	}
	if !tokens.Configured() {
		logger.WarnContext(ctx, "no unsubscribe secret configured, subscribable emails will not be sent")
	}

	wf := workflowdb.New(database.Wrap(db))
	registry := notification.NewRegistry()
	handlers.Register(registry, wf.Lookups(cfg.BaseURL))

	deps := notification.Deps{
		Store:       notification.NewRepository(db),
		Preferences: notification.NewCachedPreferences(notification.NewPreferenceRepository(db), rdb, cfg.Redis.PreferencesTTL, logger.Logger),
		Registry:    registry,
		Users:       wf,
		Contexts:    wf,
		Tokens:      tokens,
		Ledger:      notification.NewRedisMailLedger(rdb, cfg.Redis.LedgerTTL),
		Logger:      logger.Logger,
		BaseURL:     cfg.BaseURL,
		Locale:      cfg.Locale,
	}
	if cfg.Mail.ResendAPIKey != "" {
		deps.Mailer = notification.NewResendMailer(cfg.Mail.ResendAPIKey, cfg.Mail.From, cfg.Mail.RedirectTo)
	} else {
		logger.WarnContext(ctx, "mail.resend_api_key not set, emails are disabled")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		redis:  rdb,
		engine: notification.NewEngine(deps),
	}, nil
}

func resolveSecret(ctx context.Context, c config.UnsubscribeConfig) (string, error) {
	if c.Secret != "" || c.SecretID == "" {
		return config.UnsubscribeSecret(ctx, c, nil)
	}
	sm, err := config.NewSecretsManager(ctx, c.Region)
	if err != nil {
		return "", fmt.Errorf("unsubscribe secret: %w", err)
	}
	return config.UnsubscribeSecret(ctx, c, sm)
}

func (a *app) Close() {
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("closing redis", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "error", err)
	}
}
