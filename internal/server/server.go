// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server wires the waitlist services into an Echo application and
// runs it until it receives a shutdown signal.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/waitlist/internal/config"
	"codeberg.org/oliverandrich/waitlist/internal/database"
	"codeberg.org/oliverandrich/waitlist/internal/handlers"
	"codeberg.org/oliverandrich/waitlist/internal/i18n"
	"codeberg.org/oliverandrich/waitlist/internal/metrics"
	"codeberg.org/oliverandrich/waitlist/internal/repository"
	"codeberg.org/oliverandrich/waitlist/internal/services/email"
	"codeberg.org/oliverandrich/waitlist/internal/services/waitlist"
	"codeberg.org/oliverandrich/waitlist/internal/sse"
	"codeberg.org/oliverandrich/waitlist/internal/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

const shutdownTimeout = 10 * time.Second

// App is the wired waitlist application.
type App struct {
	Echo     *echo.Echo
	Waitlist *waitlist.Service
	Hub      *sse.Hub
	Metrics  *metrics.Metrics
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"mail_provider", cfg.Mail.Provider,
	)

	// Database, migrations are applied on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	app, err := New(cfg, db, slog.Default())
	if err != nil {
		return err
	}

	return app.startWithGracefulShutdown(ctx, cfg)
}

// New wires repositories, services and routes on top of db.
// i18n.Init must have been called before.
func New(cfg *config.Config, db *sqlx.DB, logger *slog.Logger) (*App, error) {
	repo := repository.New(db)

	tokens := NewTokenService(cfg)

	provider, err := email.NewProvider(&cfg.Mail, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail provider: %w", err)
	}
	mailer := email.NewService(provider, email.Options{
		BaseURL:     cfg.Server.BaseURL,
		SiteName:    cfg.Site.Name,
		TokenMaxAge: tokens.MaxAge(),
	})

	hub := sse.NewHub()
	m := metrics.New()

	svc := waitlist.NewService(repo, tokens, mailer,
		waitlist.WithBroadcaster(handlers.NewCountBroadcaster(hub)),
		waitlist.WithMetrics(m),
		waitlist.WithLogger(logger),
		waitlist.WithNotifyTimeout(cfg.Notify.Timeout),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	app := &App{Echo: e, Waitlist: svc, Hub: hub, Metrics: m}

	setupMiddleware(e, cfg)
	app.setupRoutes(cfg)

	return app, nil
}

// NewTokenService creates the token service for the configured max age and
// optional secret.
func NewTokenService(cfg *config.Config) *token.Service {
	opts := []token.Option{token.WithMaxAge(cfg.Token.MaxAge)}
	if cfg.Token.Secret != "" {
		opts = append(opts, token.WithSecret([]byte(cfg.Token.Secret)))
	}
	return token.NewService(opts...)
}

func (a *App) setupRoutes(cfg *config.Config) {
	h := handlers.New(a.Waitlist, a.Hub, cfg.Site.Name)
	e := a.Echo

	e.GET("/health", h.Health)
	e.GET("/", h.Home)
	e.GET("/thank-you", h.ThankYou)

	api := e.Group("/api")
	api.POST("/subscribe", h.Subscribe)
	api.GET("/confirm", h.Confirm)
	api.POST("/resend", h.Resend)
	api.GET("/count", h.Count)
	api.GET("/count/events", h.CountEvents)

	if cfg.Metrics.Enabled {
		e.GET("/metrics", echo.WrapHandler(a.Metrics.Handler()))
	}
}

// Shutdown stops the HTTP server, disconnects SSE clients and waits for
// pending notification mails.
func (a *App) Shutdown(ctx context.Context) error {
	// SSE handlers block until their channel closes.
	a.Hub.Close()

	err := a.Echo.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		a.Waitlist.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timed out waiting for notification mails")
	}

	return err
}

func (a *App) startWithGracefulShutdown(ctx context.Context, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	e := a.Echo
	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP to HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}

	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
