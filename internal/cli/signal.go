package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext returns a context cancelled by the first interrupt or
// SIGTERM. A second signal exits the process with status 130.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
			signal.Stop(sigCh)
			return
		}
		<-sigCh
		os.Exit(130)
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
