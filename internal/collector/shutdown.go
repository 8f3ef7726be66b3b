package collector

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"match-collector/internal/logger"
)

// SetupSignalHandler returns a context cancelled on SIGTERM or SIGINT.
// onShutdown runs before the cancel; a second signal exits immediately.
func SetupSignalHandler(onShutdown func(context.Context)) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	log := logger.Component("signal")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		sig := <-sigCh
		log.WithFields(logger.Fields{"signal": sig.String()}).Warn("shutting down, finishing current unit output")

		if onShutdown != nil {
			onShutdown(ctx)
		}
		cancel()

		sig = <-sigCh
		log.WithFields(logger.Fields{"signal": sig.String()}).Error("second signal, forcing exit")
		os.Exit(1)
	}()

	return ctx
}
