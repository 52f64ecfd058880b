// Package cli implements the orcboard command-line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on SIGINT/SIGTERM. A
// second signal forces an immediate exit rather than waiting on a stuck
// shutdown.
func SetupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %s, shutting down gracefully...\n", sig)
		cancel()

		sig = <-sigCh
		fmt.Fprintf(os.Stderr, "\nreceived %s again, forcing exit\n", sig)
		os.Exit(1)
	}()

	return ctx, cancel
}
