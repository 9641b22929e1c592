package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/mcp"
	"github.com/Sumatoshi-tech/exfang/pkg/observability"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

const (
	mcpCommandName  = "mcp"
	metricsAddrFlag = "metrics-addr"
)

func newMCPCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   mcpCommandName,
		Short: "Serve match and rewrite tools over MCP",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The server exposes the loaded templates as tools that AI agents can discover
and invoke:
  - exfang_match: report template matches in a code snippet
  - exfang_rewrite: rewrite a code snippet and add the imports it needs

With --metrics-addr a diagnostics endpoint serves /healthz, /readyz and
Prometheus /metrics next to the MCP session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runMCP(cmd.Context())
		},
	}

	cmd.Flags().String(metricsAddrFlag, "", "serve health and Prometheus metrics on this address")

	return cmd
}

func (a *app) runMCP(ctx context.Context) error {
	s, err := a.loadStore()
	if err != nil {
		return err
	}

	red, err := observability.NewREDMetrics(a.providers.Meter)
	if err != nil {
		return fmt.Errorf("red metrics: %w", err)
	}

	engine, err := a.engineMetrics(s)
	if err != nil {
		return err
	}

	if addr := a.cfg.Telemetry.MetricsAddr; addr != "" {
		diag, diagErr := observability.NewDiagnosticsServer(
			addr, a.providers.MetricsHandler, a.providers.Tracer, storeReady(s),
		)
		if diagErr != nil {
			return diagErr
		}

		defer func() {
			closeErr := diag.Close()
			if closeErr != nil {
				a.logger.Warn("diagnostics shutdown failed", "error", closeErr)
			}
		}()

		a.logger.InfoContext(ctx, "diagnostics listening", "addr", diag.Addr())
	}

	srv := mcp.NewServer(mcp.ServerDeps{
		Store:   s,
		Lenient: a.cfg.Engine.Lenient,
		Logger:  a.logger,
		Metrics: red,
		Engine:  engine,
		Tracer:  a.providers.Tracer,
	})

	a.logger.InfoContext(ctx, "mcp server starting", "templates", s.Len())

	return srv.Run(ctx)
}

// storeReady fails readiness while no template is loaded.
func storeReady(s *store.Store) observability.ReadyCheck {
	return func(context.Context) error {
		if s.Len() == 0 {
			return mcp.ErrNoTemplates
		}

		return nil
	}
}
