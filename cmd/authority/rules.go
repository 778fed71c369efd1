package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/platform/config"
	"github.com/valinor-ai/authority/internal/platform/database"
	"github.com/valinor-ai/authority/internal/platform/server"
	"github.com/valinor-ai/authority/internal/ruledef"
	"github.com/valinor-ai/authority/internal/rulestore"
)

const (
	rulesSourceFile     = "file"
	rulesSourcePostgres = "postgres"
)

var errNoDatabase = errors.New("rules source postgres requires database.url")

// loadRules reads the rule document from the configured source.
func loadRules(ctx context.Context, cfg config.EngineConfig, q database.Querier) (authority.Document, error) {
	switch cfg.RulesSource {
	case rulesSourceFile, "":
		doc, err := ruledef.Load(cfg.RulesFiles...)
		if err != nil {
			return authority.Document{}, fmt.Errorf("loading rules: %w", err)
		}
		slog.Info("rules loaded", "source", rulesSourceFile, "files", cfg.RulesFiles, "rules", len(doc.Rules))
		return doc, nil
	case rulesSourcePostgres:
		if q == nil {
			return authority.Document{}, errNoDatabase
		}
		doc, err := rulestore.NewStore().Load(ctx, q)
		if err != nil {
			return authority.Document{}, fmt.Errorf("loading rules: %w", err)
		}
		slog.Info("rules loaded", "source", rulesSourcePostgres, "rules", len(doc.Rules))
		return doc, nil
	default:
		return authority.Document{}, fmt.Errorf("unknown rules source %q", cfg.RulesSource)
	}
}

// initializer applies doc with the default predicates and declares the
// resource types the service checks itself.
func initializer(doc authority.Document) authority.Initializer {
	load := ruledef.Initializer(doc, ruledef.DefaultPredicates())
	return func(rs *authority.RuleSet) error {
		if err := load(rs); err != nil {
			return err
		}
		return rs.RegisterResourceType(server.ResourceAudit)
	}
}
