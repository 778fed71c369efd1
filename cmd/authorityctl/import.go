package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/platform/config"
	"github.com/valinor-ai/authority/internal/platform/database"
	"github.com/valinor-ai/authority/internal/ruledef"
	"github.com/valinor-ai/authority/internal/rulestore"
)

func runImport(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var (
		rules       []string
		databaseURL string
		migrations  string
		skipVerify  bool
		replace     bool
	)

	flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringSliceVar(&rules, "rules", []string{"rules.yaml"}, "rule definition files, merged in order")
	flagSet.StringVar(&databaseURL, "database-url", cfg.Database.URL, "Postgres URL (default from AUTHORITY_DATABASE_URL)")
	flagSet.StringVar(&migrations, "migrations", cfg.Database.MigrationsPath, "migrations directory")
	flagSet.BoolVar(&skipVerify, "skip-verify", false, "write rules without building an engine from them first")
	flagSet.BoolVar(&replace, "replace", false, "replace the stored rule set instead of refusing when rules exist")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if databaseURL == "" {
		return errors.New("--database-url is required")
	}

	doc, err := ruledef.Load(rules...)
	if err != nil {
		return err
	}
	if !skipVerify {
		// Reject definitions the service would fail to start with.
		if _, err := authority.Initialize(ruledef.Initializer(doc, ruledef.DefaultPredicates())); err != nil {
			return fmt.Errorf("verifying rules: %w", err)
		}
	}

	if err := database.RunMigrations(databaseURL, "file://"+migrations); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	pool, err := database.Connect(ctx, databaseURL, 2)
	if err != nil {
		return err
	}
	defer pool.Close()

	err = database.WithTx(ctx, pool, func(ctx context.Context, q database.Querier) error {
		return importDocument(ctx, rulestore.NewStore(), q, doc, replace)
	})
	if err != nil {
		return fmt.Errorf("importing rules: %w", err)
	}

	fmt.Fprintf(out, "imported %d rules, %d aliases, %d roles\n", len(doc.Rules), len(doc.Aliases), len(doc.Roles))
	return nil
}

var errRulesExist = errors.New("rules already stored; rerun with --replace to overwrite them")

// importDocument writes doc. Without replace it refuses to touch a table that
// already holds rules, so a repeated import never duplicates them.
func importDocument(ctx context.Context, store *rulestore.Store, q database.Querier, doc authority.Document, replace bool) error {
	if replace {
		return store.ReplaceDocument(ctx, q, doc)
	}
	n, err := store.CountRules(ctx, q)
	if err != nil {
		return err
	}
	if n > 0 {
		return errRulesExist
	}
	return store.SaveDocument(ctx, q, doc)
}
