// Command arena runs the Run Execution Engine: it wires the store,
// scheduler, event bus, cancellation registry and adapter client together
// behind the Control API and serves them over HTTP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/modelforge/modelforge/internal/adapter"
	"github.com/modelforge/modelforge/internal/cancel"
	"github.com/modelforge/modelforge/internal/config"
	"github.com/modelforge/modelforge/internal/eventbus"
	"github.com/modelforge/modelforge/internal/httpapi"
	"github.com/modelforge/modelforge/internal/scheduler"
	"github.com/modelforge/modelforge/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Debug("arena: could not load .env file")
	}

	cfg := config.Load()

	logger := logrus.New()
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.WithField("value", cfg.LogLevel).Warn("arena: unrecognized log level, defaulting to info")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("arena: fatal error")
	}
}

func run(cfg config.Config, logger *logrus.Logger) error {
	s, err := store.Open(cfg.DataPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	bus := eventbus.New()
	registry := cancel.New()
	adapterClient := adapter.New(&http.Client{}, logrus.NewEntry(logger))
	sch := scheduler.New(s, adapterClient, bus, registry, logger)
	srv := httpapi.New(s, sch, bus, registry, adapterClient, logger)

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE subscribers hold the connection open indefinitely
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("arena: listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
		logger.Info("arena: shutting down")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	logger.Info("arena: shutdown complete")
	return nil
}
