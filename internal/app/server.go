package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/macrolens/nutriresolve/config"
	httpDelivery "github.com/macrolens/nutriresolve/internal/delivery/http"
	"github.com/macrolens/nutriresolve/internal/logging"
)

const shutdownTimeout = 10 * time.Second

// NewServer builds the HTTP server around the app's resolver
func NewServer(cfg *config.Config, a *App) *http.Server {
	handler := httpDelivery.NewHandler(a.Resolver)
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           httpDelivery.SetupRouter(cfg, handler),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests and flushes telemetry.
func Serve(ctx context.Context, cfg *config.Config, a *App) error {
	srv := NewServer(cfg, a)

	errCh := make(chan error, 1)
	go func() {
		logging.Log.WithField("addr", srv.Addr).Info("[SERVER] listening")
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logging.Log.Info("[SERVER] shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("server shutdown: %w", err))
	}
	if err := a.Close(shutdownCtx); err != nil {
		serveErr = errors.Join(serveErr, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return serveErr
}
