// Package ruledef reads rule definition files.
//
// A definition file is YAML:
//
//	aliases:
//	  manage: [create, read, update, delete]
//	roles:
//	  admin: [editor]
//	resource_types: [document]
//	rules:
//	  - name: editors-manage
//	    privilege: allow
//	    actions: [manage]
//	    resource_type: document
//	    roles: [editor]
//	  - name: locked
//	    privilege: deny
//	    actions: [update, delete]
//	    resource_type: document
//	    condition: locked
//
// Conditions name predicates registered by the host.
package ruledef

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/valinor-ai/authority/internal/authority"
	"golang.org/x/sync/errgroup"
)

// Alias and role names may contain dots, so keys are never split.
const keyDelim = "\x00"

// Load reads the files concurrently and merges them in argument order. Later
// files extend aliases and roles and append their rules.
func Load(paths ...string) (authority.Document, error) {
	parts := make([]authority.Document, len(paths))

	var g errgroup.Group
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		g.Go(func() error {
			part, err := loadFile(path)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return authority.Document{}, err
	}

	var doc authority.Document
	for _, part := range parts {
		doc.Merge(part)
	}
	return doc, nil
}

const maxParallelReads = 8

func loadFile(path string) (authority.Document, error) {
	k := koanf.New(keyDelim)
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return authority.Document{}, fmt.Errorf("loading rules file %s: %w", path, err)
	}
	doc, err := unmarshal(k)
	if err != nil {
		return authority.Document{}, fmt.Errorf("parsing rules file %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a single YAML definition.
func Parse(data []byte) (authority.Document, error) {
	raw, err := yaml.Parser().Unmarshal(data)
	if err != nil {
		return authority.Document{}, fmt.Errorf("parsing rules: %w", err)
	}
	k := koanf.New(keyDelim)
	if err := k.Load(confmap.Provider(raw, ""), nil); err != nil {
		return authority.Document{}, fmt.Errorf("loading rules: %w", err)
	}
	return unmarshal(k)
}

func unmarshal(k *koanf.Koanf) (authority.Document, error) {
	var doc authority.Document
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return authority.Document{}, fmt.Errorf("decoding rules: %w", err)
	}
	return doc, nil
}

// Initializer returns an initialization hook that applies doc with preds
// resolving rule conditions.
func Initializer(doc authority.Document, preds *authority.Predicates) authority.Initializer {
	return func(rs *authority.RuleSet) error {
		return authority.LoadDocument(rs, doc, preds)
	}
}
