package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/pflag"
	"github.com/valinor-ai/authority/internal/authority"
	"github.com/valinor-ai/authority/internal/ruledef"
)

// errDenied is returned when the query evaluated to a denial, so scripts can
// branch on the exit status.
var errDenied = errors.New("denied")

func runCheck(args []string, out io.Writer) error {
	var (
		rules        []string
		action       string
		resourceType string
		roles        []string
		subjectAttrs map[string]string
		resAttrs     map[string]string
		strict       bool
		asJSON       bool
	)

	flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
	flagSet.SetOutput(out)
	flagSet.StringSliceVar(&rules, "rules", []string{"rules.yaml"}, "rule definition files, merged in order")
	flagSet.StringVarP(&action, "action", "a", "", "action to check")
	flagSet.StringVarP(&resourceType, "type", "t", "", "resource type")
	flagSet.StringSliceVar(&roles, "roles", nil, "subject roles")
	flagSet.StringToStringVar(&subjectAttrs, "subject", nil, "subject attributes as key=value")
	flagSet.StringToStringVar(&resAttrs, "resource", nil, "resource attributes as key=value")
	flagSet.BoolVar(&strict, "strict", false, "fail on unregistered resource types")
	flagSet.BoolVar(&asJSON, "json", false, "print the decision as JSON")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if action == "" || resourceType == "" {
		return errors.New("--action and --type are required")
	}

	doc, err := ruledef.Load(rules...)
	if err != nil {
		return err
	}
	var opts []authority.Option
	if strict {
		opts = append(opts, authority.WithStrictMode())
	}
	engine, err := authority.Initialize(ruledef.Initializer(doc, ruledef.DefaultPredicates()), opts...)
	if err != nil {
		return err
	}

	subject := authority.NewSubject(roles, attributes(subjectAttrs))
	d, err := engine.Can(subject, action, authority.NewResource(resourceType, attributes(resAttrs)))
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(d); err != nil {
			return err
		}
	} else {
		verdict := "DENY"
		if d.Allowed {
			verdict = "ALLOW"
		}
		fmt.Fprintf(out, "%s %s on %s: %s\n", verdict, action, resourceType, d.Reason)
	}

	if !d.Allowed {
		return errDenied
	}
	return nil
}

// attributes converts flag values, turning "true", "false" and numbers into
// their typed form so predicates compare them like decoded YAML. Integers stay
// int64 so large IDs keep every digit.
func attributes(raw map[string]string) authority.Attributes {
	if len(raw) == 0 {
		return nil
	}
	attrs := make(authority.Attributes, len(raw))
	for k, v := range raw {
		if b, err := strconv.ParseBool(v); err == nil {
			attrs[k] = b
			continue
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			attrs[k] = n
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			attrs[k] = f
			continue
		}
		attrs[k] = v
	}
	return attrs
}
