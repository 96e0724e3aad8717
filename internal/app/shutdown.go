package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"top8scraper/internal/observability"
)

// GracefulShutdown returns a context that is cancelled on SIGINT or SIGTERM.
// Cancelling it stops in-flight fetches and makes Run roll back.
func GracefulShutdown(parent context.Context, logger *observability.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Warn("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
