package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/law-makers/catalog/internal/cli"
)

func main() {
	// Cancel in-flight scrapes and stop the server on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
