package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
	Engine   EngineConfig   `koanf:"engine"`
	Audit    AuditConfig    `koanf:"audit"`
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	URL            string `koanf:"url"`
	MigrationsPath string `koanf:"migrations_path"`
	MaxConns       int    `koanf:"max_conns"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type AuthConfig struct {
	DevMode bool      `koanf:"devmode"`
	JWT     JWTConfig `koanf:"jwt"`
}

type JWTConfig struct {
	SigningKey  string `koanf:"signingkey"`
	Issuer      string `koanf:"issuer"`
	ExpiryHours int    `koanf:"expiryhours"`
}

// EngineConfig controls how the rule set is built.
type EngineConfig struct {
	// Strict rejects queries against resource types no rule names.
	Strict bool `koanf:"strict"`
	// RulesSource is "file" or "postgres".
	RulesSource string   `koanf:"rules_source"`
	RulesFiles  []string `koanf:"rules_files"`
}

type AuditConfig struct {
	Enabled       bool `koanf:"enabled"`
	BufferSize    int  `koanf:"buffer_size"`
	BatchSize     int  `koanf:"batch_size"`
	FlushInterval int  `koanf:"flush_interval_ms"`
}

func Load(configPaths ...string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	_ = k.Load(confmap.Provider(map[string]any{
		"server.port":              8080,
		"server.host":              "0.0.0.0",
		"database.max_conns":       10,
		"database.migrations_path": "migrations",
		"log.level":                "info",
		"log.format":               "json",
		"auth.devmode":             false,
		"auth.jwt.issuer":          "authority",
		"auth.jwt.expiryhours":     24,
		"engine.strict":            false,
		"engine.rules_source":      "file",
		"engine.rules_files":       []string{"rules.yaml"},
		"audit.enabled":            true,
		"audit.buffer_size":        4096,
		"audit.batch_size":         100,
		"audit.flush_interval_ms":  500,
	}, "."), nil)

	// YAML file (optional)
	for _, path := range configPaths {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Config file is optional, skip if not found
			continue
		}
	}

	// Environment variables override everything
	// AUTHORITY_SERVER_PORT -> server.port
	_ = k.Load(env.Provider("AUTHORITY_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "AUTHORITY_"))
		section, rest, ok := strings.Cut(key, "_")
		if !ok {
			return key
		}
		// Only the section separator becomes a dot; field names such as
		// rules_source keep their underscores.
		if section == "auth" {
			return section + "." + strings.ReplaceAll(rest, "_", ".")
		}
		return section + "." + rest
	}), nil)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
