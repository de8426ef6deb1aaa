// kom-bridge keeps WooCommerce orders in sync with Klarna Order Management.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kom-bridge/internal/config"
	"kom-bridge/internal/handler"
	"kom-bridge/internal/klarna"
	"kom-bridge/internal/metrics"
	"kom-bridge/internal/middleware"
	"kom-bridge/internal/orderlines"
	"kom-bridge/internal/ordermgmt"
	"kom-bridge/internal/transport"
	"kom-bridge/internal/woocommerce"
)

const upstreamTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := initLogger()

	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	settings := cfg.OrderManagementSettings()
	logger.Info("configuration loaded",
		slog.String("shop_id", cfg.ShopID),
		slog.String("environment", cfg.Environment),
		slog.String("store_url", cfg.Shop.StoreURL),
		slog.String("store_country", cfg.Shop.StoreCountry),
		slog.String("transport", string(cfg.Transport)),
		slog.Any("settings", settings),
	)

	svc, reg, err := newService(cfg, settings, logger)
	if err != nil {
		return err
	}

	h := handler.New(svc, logger)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("GET /metrics", reg.Handler())

	// Recovery is outermost so panics in logging are caught too.
	// RequestID runs before Logging so every log line carries the ID.
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logging(logger),
		middleware.Metrics(reg),
		middleware.RequireToken(cfg.Shop.AuthToken, "/health", "/healthz", "/metrics"),
	)(mux)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give in-flight captures and refunds time to finish
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// newService wires the order store, the Klarna client and the translator.
func newService(cfg *config.Config, settings ordermgmt.Settings, logger *slog.Logger) (*ordermgmt.Service, *metrics.Registry, error) {
	rt, err := transport.New(cfg.Transport, upstreamTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("creating transport: %w", err)
	}

	store, err := woocommerce.New(woocommerce.Config{
		StoreURL:       cfg.Shop.StoreURL,
		ConsumerKey:    cfg.Shop.ConsumerKey,
		ConsumerSecret: cfg.Shop.ConsumerSecret,
		HTTPClient:     &http.Client{Timeout: upstreamTimeout, Transport: rt},
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating woocommerce client: %w", err)
	}

	reg := metrics.NewRegistry()

	kc := klarna.New(klarna.Config{
		Settings: cfg.Shop.Klarna,
		BaseURL:  cfg.Shop.KlarnaBaseURL,
		Logger:   logger,
		Metrics:  reg,
		DebugLog: settings.DebugLog,
	})

	svc := ordermgmt.New(ordermgmt.Config{
		Store:      store,
		Klarna:     kc,
		Translator: orderlines.New(cfg.BuildTransformConfig()),
		Settings:   settings,
		Logger:     logger,
		Metrics:    reg,
	})
	return svc, reg, nil
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
