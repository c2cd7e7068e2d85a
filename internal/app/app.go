package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/events"
	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/httpapi"
	sqliteadapter "github.com/atvirokodosprendimai/ruleapi/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/ruleapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/ports"
	"github.com/atvirokodosprendimai/ruleapi/internal/core/usecase"
	"github.com/atvirokodosprendimai/ruleapi/migrations"
)

type Config struct {
	Addr             string
	DBPath           string
	BootstrapAPIKey  string
	BootstrapKeyName string
	WebhookURL       string
	WebhookSecret    string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config, logger *zap.Logger) (*http.Server, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if version, err := migrations.Version(writeSQLDB); err == nil {
		logger.Info("database ready", zap.String("path", cfg.DBPath), zap.Int64("schema_version", version))
	}

	ruleSetRepo := sqliteadapter.NewRuleSetRepository(db)
	runStore := sqliteadapter.NewRunStore(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	ruleSets := usecase.NewRuleSetService(ruleSetRepo)
	validations := usecase.NewValidationService(ruleSets, runStore)
	authService := usecase.NewAuthService(apiKeyRepo)

	if cfg.BootstrapAPIKey != "" {
		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		err := authService.Bootstrap(bootstrapCtx, cfg.BootstrapAPIKey, cfg.BootstrapKeyName)
		bootstrapCancel()
		if err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, newPublisher(cfg, logger), logger, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	metrics := httpapi.NewMetrics()
	metrics.WatchDispatcher(dispatcher.Metrics)
	handler := httpapi.NewHandler(ruleSets, validations, authService, logger, metrics)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}

func newPublisher(cfg Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.WebhookURL == "" {
		return events.NewLogPublisher(logger)
	}
	logger.Info("webhook delivery enabled", zap.String("url", cfg.WebhookURL))
	return events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
}
