package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/tbourn/go-activity-scraper/cmd/scraper/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
