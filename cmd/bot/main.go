package main

import (
	"context"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"chefbot/internal/infrastructure"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("chefbot: %v", err)
	}
}

func run(ctx context.Context) error {
	app, cleanup, err := infrastructure.Bootstrap(ctx)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return err
	}

	slog.Info("chefbot is running")

	return app.Run(ctx)
}
