package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/agentcanvas/agentcanvas"
	"github.com/agentcanvas/agentcanvas/httpapi"
	aclog "github.com/agentcanvas/agentcanvas/log"
	"github.com/agentcanvas/agentcanvas/metrics/export/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, v)
		},
	}
	fs := cmd.Flags()
	addEngineFlags(fs)
	fs.String("listen", ":3000", "listen address")
	fs.String("cors-origins", "", "comma-separated origins allowed to call the API with credentials")
	fs.Bool("expose-metrics", true, "serve Prometheus metrics at /metrics")
	fs.Duration("shutdown-timeout", 15*time.Second, "graceful shutdown deadline")
	fs.Bool("watch-config", true, "reload the session secret when the config file changes")
	return cmd
}

func newLogger(v *viper.Viper) (*zap.Logger, error) {
	return aclog.New(v.GetString("log-level"), aclog.Format(v.GetString("log-format")))
}

func runServe(ctx context.Context, v *viper.Viper) error {
	logger, err := newLogger(v)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := engineConfig(v)
	if err != nil {
		return err
	}
	for _, w := range cfg.Lint() {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("severity", w.Severity.String()), zap.String("message", w.Message))
	}

	b := agentcanvas.New().WithConfig(cfg).WithLogger(logger)
	if v.GetBool("watch-config") {
		secrets := newSecretWatcher(cfg.Session.Secret, logger)
		if watchSecret(v, secrets) {
			b = b.WithSecretSource(secrets.Secret)
			logger.Info("watching config file for session secret changes", zap.String("file", v.ConfigFileUsed()))
		}
	}
	if cfg.Audit.Enabled {
		b = b.WithAuditSink(agentcanvas.NewZapSink(logger))
	}
	engine, err := b.Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	opts := httpapi.Options{
		AllowedOrigins: splitList(v.GetString("cors-origins")),
		Logger:         logger,
	}
	if v.GetBool("expose-metrics") {
		opts.Metrics = prometheus.NewExporter(engine).Handler()
	}

	srv := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           httpapi.New(engine, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr), zap.Bool("production", cfg.Production))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), durationOr(v, "shutdown-timeout", 15*time.Second))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
