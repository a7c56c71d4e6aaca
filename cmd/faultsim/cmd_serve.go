package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pico-faultsim/internal/handlers"
	"pico-faultsim/internal/logging"
)

const shutdownTimeout = 30 * time.Second

var serveFlags struct {
	port string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnostics HTTP API with Prometheus metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.port, "port", "", "Listen port (default: server.port from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	log := logging.Component(a.logger, "server")
	log.Info("starting fault-injection diagnostics service")

	if err := a.connectStore(); err != nil {
		return err
	}

	// nil *RedisCache в интерфейсе не равен nil
	var handler *handlers.Handler
	if a.store != nil {
		handler = handlers.NewHandler(a.runner(), a.catalog, a.store)
	} else {
		handler = handlers.NewHandler(a.runner(), a.catalog, nil)
	}

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.Handle("/prometheus", promhttp.Handler())

	port := a.cfg.Server.Port
	if serveFlags.port != "" {
		port = serveFlags.port
	}
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", port, "scenarios", len(a.catalog.Names()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}
