package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// APIServer runs the router until ctx is cancelled, then drains in-flight
// requests within shutdownTimeout. onShutdown runs after the listener closes.
func APIServer(
	ctx context.Context,
	route *chi.Mux,
	port string,
	shutdownTimeout time.Duration,
	logger *zap.Logger,
	onShutdown func(ctx context.Context) error,
) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           route,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server running", zap.String("addr", "http://localhost"+srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error stopping server", zap.Error(err))
			return err
		}
		if onShutdown != nil {
			if err := onShutdown(shutdownCtx); err != nil {
				logger.Warn("Shutdown hook did not finish", zap.Error(err))
			}
		}
		return nil
	})

	// Will block until all goroutines finish
	return g.Wait()
}
