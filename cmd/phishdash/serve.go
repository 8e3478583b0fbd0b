package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/veil-waf/phishdash/internal/handlers"
	"github.com/veil-waf/phishdash/internal/ratelimit"
	"github.com/veil-waf/phishdash/internal/server"
	tlsmgr "github.com/veil-waf/phishdash/internal/tls"
	"github.com/veil-waf/phishdash/internal/ws"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(parent context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, logger, err := loadApp(ctx, opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	wsManager := ws.NewManager(a)
	limiter := ratelimit.New()
	router := handlers.NewRouter(a, limiter, wsManager.HandleWS)

	// Start background goroutines
	a.Background(ctx)
	go server.RunWithRecovery(ctx, logger, "ws-forward", wsManager.Forward)
	go server.RunWithRecovery(ctx, logger, "ratelimit-sweep", server.Every(5*time.Minute, func(context.Context) {
		if n := limiter.Sweep(); n > 0 {
			logger.Debug("rate limiter swept", "removed", n, "tracked", limiter.Len())
		}
	}))

	srv := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	if len(a.Config.TLSDomains) > 0 {
		cm := tlsmgr.NewCertManager(a.Config.TLSDomains, a.Config.ACMEEmail, a.Config.Production, logger)
		logger.Info("server starting", "domains", cm.Domains())
		err = cm.Serve(ctx, srv)
	} else {
		logger.Info("server starting", "port", a.Config.Port)
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}
