package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// startHTTPServer serves router until SIGINT, SIGTERM or ctx cancellation,
// then shuts down gracefully and releases the application resources.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) error {
	// No write timeout: progress streams stay open for the whole session.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serverCtx, cancelServer := context.WithCancel(ctx)
	defer cancelServer()

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdownCh)

	go func() {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Error("server failed", "error", err)
			cancelServer()
		}
	}()

	select {
	case <-shutdownCh:
		app.logger.Info("shutting down server")
	case <-serverCtx.Done():
		app.logger.Info("server context canceled, shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Open progress streams never become idle, so a timed out Shutdown is
	// followed by Close to drop them.
	var shutdownErr error
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.logger.Warn("graceful shutdown timed out, closing connections", "error", err)
		if cerr := server.Close(); cerr != nil {
			shutdownErr = fmt.Errorf("server close failed: %w", cerr)
		}
	}

	app.cleanup()

	app.logger.Info("server shutdown completed")
	return shutdownErr
}
