// Package server runs an http.Server until its context ends and then drains it.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"
)

// ErrForcedShutdown is returned when open connections outlive the shutdown timeout
var ErrForcedShutdown = errors.New("server forced to shutdown")

// Run serves srv on ln until ctx is done or serving fails, then shuts down
// gracefully, waiting at most timeout for in-flight requests.
func Run(ctx context.Context, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("[SERVER] listening on %s", ln.Addr())
		serveErr <- srv.Serve(ln)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Println("[SERVER] shutting down...")
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		runErr = fmt.Errorf("server failed: %w", err)
		log.Printf("[SERVER] %v, shutting down", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return errors.Join(runErr, fmt.Errorf("%w: %w", ErrForcedShutdown, err))
	}

	log.Println("[SERVER] exited")
	return runErr
}
