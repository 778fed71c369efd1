// authorityctl evaluates authorization queries against rule files and seeds
// the rule tables from them.
//
// Usage:
//
//	authorityctl check --rules rules.yaml --action update --type document \
//	    --roles editor --subject id=u1 --resource owner_id=u1
//	authorityctl import --rules rules.yaml --database-url postgres://...
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errDenied) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

const usage = `authorityctl evaluates authorization rules.

Commands:
  check    evaluate one query against rule files
  import   write rule files to the database

Run "authorityctl <command> --help" for flags.
`

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("missing command")
	}
	switch args[0] {
	case "check":
		return runCheck(args[1:], out)
	case "import":
		return runImport(ctx, args[1:], out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
