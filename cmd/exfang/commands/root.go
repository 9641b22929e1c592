// Package commands implements CLI command handlers for exfang.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/config"
	"github.com/Sumatoshi-tech/exfang/pkg/observability"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
	"github.com/Sumatoshi-tech/exfang/pkg/version"
)

// shutdownTimeout bounds the telemetry flush on exit.
const shutdownTimeout = 5 * time.Second

// globalFlags are the persistent flags shared by every command. A flag set on
// the command line overrides the loaded configuration.
type globalFlags struct {
	configPath string
	storeDir   string
	manifest   string
	lang       string
	lenient    bool
	workers    int
	format     string
	noColor    bool
	logLevel   string
	logJSON    bool
}

// app is the per-invocation state built before a command runs.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
}

// NewRootCommand builds the exfang command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	state := &app{stdout: os.Stdout, stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "exfang",
		Short: "Example-driven structural match and rewrite",
		Long: `exfang compiles before/after code examples into templates and uses them
to find and rewrite matching code in Go and Java sources.

Commands:
  compile   Compile example files into template artifacts
  check     Report template matches
  apply     Rewrite matches in place or as a diff
  inspect   Show artifact headers and patterns
  list      List the loaded templates
  mcp       Serve match and rewrite tools over MCP`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return state.init(cmd, flags)
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return state.shutdown()
		},
	}

	rootCmd.SetOut(state.stdout)
	rootCmd.SetErr(state.stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default .exfang.yaml in the working or home directory)")
	pf.StringVar(&flags.storeDir, "store", "", "template artifact directory")
	pf.StringVar(&flags.manifest, "manifest", "", "template manifest; overrides --store")
	pf.StringVar(&flags.lang, "lang", "", "host language: go or java (default: by file extension)")
	pf.BoolVar(&flags.lenient, "lenient", false, "let untyped code satisfy typed placeholders")
	pf.IntVar(&flags.workers, "workers", 0, "parallel units (default GOMAXPROCS)")
	pf.StringVar(&flags.format, "format", "", "output format: text, json or yaml")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(
		newCompileCommand(state),
		newCheckCommand(state),
		newApplyCommand(state),
		newInspectCommand(state),
		newListCommand(state),
		newMCPCommand(state),
		newVersionCommand(state),
	)

	return rootCmd
}

func (a *app) init(cmd *cobra.Command, flags *globalFlags) error {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	applyFlags(cmd, flags, cfg)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	a.cfg = cfg
	a.stdout = cmd.OutOrStdout()
	a.stderr = cmd.ErrOrStderr()

	if !cfg.Output.Color {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	a.providers, err = observability.Init(observabilityConfig(cfg, cmd.Name() == mcpCommandName))
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}

	a.logger = a.providers.Logger

	return nil
}

func (a *app) shutdown() error {
	if a.providers.Shutdown == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := a.providers.Shutdown(ctx)
	if err != nil {
		a.logger.Warn("observability shutdown failed", "error", err)
	}

	return nil
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, flags *globalFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("store") {
		cfg.Store.Dir = flags.storeDir
	}

	if changed("manifest") {
		cfg.Store.Manifest = flags.manifest
	}

	if changed("lang") {
		cfg.Engine.Language = flags.lang
	}

	if changed("lenient") {
		cfg.Engine.Lenient = flags.lenient
	}

	if changed("workers") {
		cfg.Engine.Workers = flags.workers
	}

	if changed("format") {
		cfg.Output.Format = flags.format
	}

	if changed("no-color") {
		cfg.Output.Color = !flags.noColor
	}

	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}

	if changed("log-json") {
		cfg.Log.JSON = flags.logJSON
	}

	if changed(metricsAddrFlag) {
		addr, err := cmd.Flags().GetString(metricsAddrFlag)
		if err == nil {
			cfg.Telemetry.MetricsAddr = addr
		}
	}
}

func observabilityConfig(cfg *config.Config, serving bool) observability.Config {
	obs := observability.DefaultConfig()
	obs.ServiceVersion = version.Version
	obs.Environment = cfg.Telemetry.Environment
	obs.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obs.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obs.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obs.SampleRatio = cfg.Telemetry.SampleRatio
	obs.DebugTrace = cfg.Telemetry.DebugTrace
	obs.LogLevel = cfg.Log.SlogLevel()
	obs.LogJSON = cfg.Log.JSON

	if serving {
		obs.Mode = observability.ModeMCP
		obs.LogJSON = true
		obs.PrometheusMetrics = cfg.Telemetry.MetricsAddr != ""
	}

	return obs
}

// loadStore opens the configured template store. Artifacts that fail to load
// are logged and skipped; the command fails only when nothing loads.
func (a *app) loadStore() (*store.Store, error) {
	var (
		s   *store.Store
		err error
	)

	if a.cfg.Store.Manifest != "" {
		s, err = store.LoadManifest(a.cfg.Store.Manifest)
	} else {
		s, err = store.LoadDir(a.cfg.Store.Dir)
	}

	if s == nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	for _, failure := range store.LoadErrors(err) {
		a.logger.Warn("template artifact skipped", "error", failure)
	}

	return s, nil
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(a.stdout, version.String())
		},
	}
}
