// Command fql compiles FQL queries to FetchXML.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/fetchql/internal/cli"
)

// Version information, set at build time via -ldflags
var Version = "dev" // -X main.Version=$(git describe --tags --always)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, Version)
	stop()
	os.Exit(code)
}
