package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvandessel/epigraph/internal/config"
	"github.com/nvandessel/epigraph/internal/mcp"
	"github.com/nvandessel/epigraph/internal/metrics"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve epigraph tools over MCP (stdio)",
		Long: `Run an MCP (Model Context Protocol) server on stdin/stdout so AI agents
can run simulations, compare policies, render contact graphs and read the
run history.

Tool arguments default to the loaded configuration. Tool calls are audited
to ~/.epigraph/audit.jsonl. When metrics.addr is set, Prometheus metrics of
every simulated day are served on it.

Example MCP client entry:
  {"command": "epigraph", "args": ["mcp-server"]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			// Stdout carries the protocol; logs go to stderr only.
			logger, trace := newLogger(cmd, settings)
			defer trace.Close()

			rs, err := openStore(cmd.Context(), settings)
			if err != nil {
				return err
			}

			dir, err := config.Dir()
			if err != nil {
				rs.Close()
				return err
			}

			m := metrics.New(nil)
			server, err := mcp.NewServer(&mcp.Config{
				Name:     "epigraph",
				Version:  version,
				Settings: settings,
				Store:    rs,
				AuditDir: dir,
				Metrics:  m,
				Logger:   logger,
				Trace:    trace,
			})
			if err != nil {
				rs.Close()
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if metricsAddr == "" {
				metricsAddr = settings.Metrics.Addr
			}
			if metricsAddr != "" {
				go func() {
					if err := serveMetrics(ctx, metricsAddr, m); err != nil {
						logger.Warn("metrics endpoint failed", "addr", metricsAddr, "error", err)
					}
				}()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			logger.Debug("starting MCP server", "version", version)
			return server.Run(ctx)
		},
	}

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus /metrics on this address (default metrics.addr)")
	return cmd
}

// serveMetrics serves m on addr/metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, m *metrics.Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
