// app runs one ledger command against the database and prints the result as JSON.
//
// Usage: go run ./cmd/app -actor <username> <command> [args...]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"sales-ledger/internal/adapters/cli"
	"sales-ledger/internal/bootstrap"
	"sales-ledger/internal/config"
)

func main() {
	actor := flag.String("actor", os.Getenv("SALES_ACTOR"), "username of the acting agent (default $SALES_ACTOR)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: app [-actor username] <command> [args...]\n\n%s\n", cli.Usage)
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	// Only warnings and errors go to stderr so stdout stays valid JSON.
	log := config.NewLogger("warn")
	log.SetOutput(os.Stderr)

	ctx := context.Background()
	svc, cleanup, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := cli.Run(ctx, svc, *actor, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		cleanup()
		os.Exit(1)
	}
}
