// Command importer imports contacts from CSV and XLSX files into the
// directory, and writes the import template.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(defaultEnv()).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
