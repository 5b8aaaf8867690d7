// Command ctxsearch runs semantic nearest-context searches from the shell.
//
// Usage:
//
//	ctxsearch models
//	ctxsearch search "the king and queen" -m GloVe -k 5
package main

import (
	"context"
	"fmt"
	"os"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	if err := NewRootCmd(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "ctxsearch:", err)
		os.Exit(1)
	}
}
