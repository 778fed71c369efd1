package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/valinor-ai/authority/internal/audit"
	"github.com/valinor-ai/authority/internal/auth"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/decision"
	"github.com/valinor-ai/authority/internal/platform/config"
	"github.com/valinor-ai/authority/internal/platform/database"
	"github.com/valinor-ai/authority/internal/platform/server"
	"github.com/valinor-ai/authority/internal/platform/telemetry"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.NewLogger(cfg.Log.Level, cfg.Log.Format)
	telemetry.SetDefault(logger)

	slog.Info("authority starting",
		"port", cfg.Server.Port,
		"rules_source", cfg.Engine.RulesSource,
		"strict", cfg.Engine.Strict,
	)

	ctx := context.Background()
	var pool *database.Pool

	if cfg.Database.URL != "" {
		slog.Info("connecting to database")
		p, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			if cfg.Engine.RulesSource == rulesSourcePostgres {
				return fmt.Errorf("connecting to database: %w", err)
			}
			slog.Warn("database connection failed, starting without DB", "error", err)
		} else {
			pool = p
			defer pool.Close()

			migrationsURL := fmt.Sprintf("file://%s", cfg.Database.MigrationsPath)
			if err := database.RunMigrations(cfg.Database.URL, migrationsURL); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}
			slog.Info("migrations complete")
		}
	}

	// Audit
	var auditLogger audit.Logger = audit.NopLogger{}
	var auditHandler *audit.Handler
	if pool != nil && cfg.Audit.Enabled {
		auditStore := audit.NewStore()
		auditLogger = audit.NewAsyncLogger(pool, auditStore, audit.LoggerConfig{
			BufferSize:    cfg.Audit.BufferSize,
			BatchSize:     cfg.Audit.BatchSize,
			FlushInterval: time.Duration(cfg.Audit.FlushInterval) * time.Millisecond,
		})
		auditHandler = audit.NewHandler(pool, auditStore)
		slog.Info("audit logger started")
	}

	// Rules
	var q database.Querier
	if pool != nil {
		q = pool
	}
	doc, err := loadRules(ctx, cfg.Engine, q)
	if err != nil {
		return err
	}
	opts := []authority.Option{authority.WithLogger(logger)}
	if auditHandler != nil {
		opts = append(opts, authority.WithListener(audit.NewRecorder(auditLogger, audit.SourceEngine)))
	}
	if cfg.Engine.Strict {
		opts = append(opts, authority.WithStrictMode())
	}
	engine, err := authority.Initialize(initializer(doc), opts...)
	if err != nil {
		return err
	}
	slog.Info("rule set frozen", "rules", engine.RuleSet().Len())

	tokenSvc := auth.NewTokenService(
		cfg.Auth.JWT.SigningKey,
		cfg.Auth.JWT.Issuer,
		cfg.Auth.JWT.ExpiryHours,
	)

	var devIdentity *auth.Identity
	if cfg.Auth.DevMode {
		slog.Warn("running in dev mode, authentication bypassed with 'Bearer dev'")
		devIdentity = &auth.Identity{
			UserID:    "dev-user",
			RoleNames: []string{"admin"},
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := server.New(addr, server.Dependencies{
		Pool:            pool,
		Auth:            tokenSvc,
		Engine:          engine,
		DecisionHandler: decision.NewHandler(engine),
		AuditHandler:    auditHandler,
		AuditLogger:     auditLogger,
		DevMode:         cfg.Auth.DevMode,
		DevIdentity:     devIdentity,
		Logger:          logger,
	})

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	serverDone := make(chan struct{})
	g.Go(func() error {
		defer close(serverDone)
		return srv.Start(gctx)
	})
	// The audit logger outlives the server so in-flight decisions are flushed.
	g.Go(func() error {
		<-serverDone
		return auditLogger.Close()
	})

	slog.Info("server ready", "addr", addr, "dev_mode", cfg.Auth.DevMode)
	return g.Wait()
}
