// Package server exposes the relay over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielolaszy/ticketrelay/internal/logging"
)

// Run starts the HTTP server and shuts it down when ctx is canceled.
// It returns the listen error if the server could not start.
func Run(ctx context.Context, handler http.Handler, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("starting server", "address", httpServer.Addr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error("server shutdown error", "error", err)
	}

	return <-errCh
}
