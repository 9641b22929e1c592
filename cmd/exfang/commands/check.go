package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend/golang"
	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/observability"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
	"github.com/Sumatoshi-tech/exfang/pkg/typesys"
)

// ErrUnitsFailed is returned when at least one unit could not be checked.
var ErrUnitsFailed = errors.New("some units failed")

// ErrPackagesNeedGo is returned when --packages is used with another language.
var ErrPackagesNeedGo = errors.New("--packages loads Go packages only")

type checkOptions struct {
	since         string
	packages      bool
	detectionOnly bool
	templates     []string
}

func newCheckCommand(a *app) *cobra.Command {
	opts := &checkOptions{}

	cmd := &cobra.Command{
		Use:   "check [flags] PATH...",
		Short: "Report template matches",
		Long: `Check parses the given files and directories and reports every match of
the loaded templates. Nothing is modified.

With --since REV only files changed in the work tree relative to REV are
checked. With --packages Go directories are loaded as type-checked packages
with go/packages instead of file by file.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCheck(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.since, "since", "", "only check files changed since this Git revision")
	cmd.Flags().BoolVar(&opts.packages, "packages", false, "load Go directories as type-checked packages")
	cmd.Flags().StringSliceVarP(&opts.templates, "template", "t", nil, "run only these templates")
	cmd.Flags().BoolVar(&opts.detectionOnly, "detection-only", false, "report matches without computing rewrites")

	return cmd
}

func (a *app) runCheck(ctx context.Context, opts *checkOptions, paths []string) error {
	s, err := a.selectedStore(opts.templates)
	if err != nil {
		return err
	}

	start := time.Now()

	var (
		inputs    []check.Input
		hierarchy typesys.Hierarchy
	)

	if opts.packages {
		inputs, hierarchy, err = a.packageInputs(ctx, paths)
	} else {
		inputs, hierarchy, err = a.fileInputs(paths, opts.since, nil)
	}

	if err != nil {
		return err
	}

	metrics, err := a.engineMetrics(s)
	if err != nil {
		return err
	}

	engine := a.newEngine(s, hierarchy, metrics, opts.detectionOnly || a.cfg.Engine.DetectionOnly)

	reports, err := engine.Run(ctx, inputs, a.cfg.Engine.Workers)
	if err != nil {
		return err
	}

	err = a.renderReports(reports, time.Since(start))
	if err != nil {
		return err
	}

	return failedUnits(reports)
}

// selectedStore loads the store and narrows it to names when given.
func (a *app) selectedStore(names []string) (*store.Store, error) {
	s, err := a.loadStore()
	if err != nil {
		return nil, err
	}

	selected, err := s.Select(names...)
	if err != nil {
		return nil, fmt.Errorf("select templates: %w", err)
	}

	return selected, nil
}

// fileInputs collects the sources under paths and resolves the front ends
// they need, so the engine can consult every hierarchy involved.
func (a *app) fileInputs(paths []string, since string, overlay map[string][]byte) ([]check.Input, typesys.Hierarchy, error) {
	set := frontend.NewSet(a.cfg.Engine.Language)

	files, err := collectSources(paths, set)
	if err != nil {
		return nil, nil, err
	}

	files, err = changedOnly(files, since)
	if err != nil {
		return nil, nil, err
	}

	hierarchy, err := hierarchyFor(files, set)
	if err != nil {
		return nil, nil, err
	}

	return sourceInputs(files, set, overlay), hierarchy, nil
}

func hierarchyFor(files []string, set *frontend.Set) (typesys.Hierarchy, error) {
	seen := make(map[string]bool)

	var hierarchies []typesys.Hierarchy

	for _, file := range files {
		fe, err := set.For(file)
		if err != nil {
			return nil, err
		}

		if !seen[fe.Language()] {
			seen[fe.Language()] = true

			hierarchies = append(hierarchies, fe.Hierarchy())
		}
	}

	return typesys.Chain(hierarchies...), nil
}

// packageInputs loads every directory in paths as a pattern "./..." of Go
// packages sharing one hierarchy.
func (a *app) packageInputs(ctx context.Context, paths []string) ([]check.Input, typesys.Hierarchy, error) {
	if a.cfg.Engine.Language != "" && a.cfg.Engine.Language != golang.Language {
		return nil, nil, ErrPackagesNeedGo
	}

	h := golang.NewHierarchy()

	var inputs []check.Input

	for _, path := range paths {
		dir, err := filepath.Abs(path)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve %s: %w", path, err)
		}

		units, err := golang.LoadPackages(ctx, dir, h, "./...")
		if err != nil {
			return nil, nil, err
		}

		inputs = append(inputs, check.Units(units...)...)
	}

	return inputs, typesys.Chain(h, typesys.DefaultLattice()), nil
}

func (a *app) engineMetrics(s *store.Store) (*observability.EngineMetrics, error) {
	metrics, err := observability.NewEngineMetrics(a.providers.Meter, s.Len)
	if err != nil {
		return nil, fmt.Errorf("engine metrics: %w", err)
	}

	return metrics, nil
}

func (a *app) newEngine(
	s *store.Store, h typesys.Hierarchy, metrics *observability.EngineMetrics, detectionOnly bool,
) *check.Engine {
	matchOpts := []match.Option{match.WithHierarchy(h)}
	if a.cfg.Engine.Lenient {
		matchOpts = append(matchOpts, match.WithLenientTypes())
	}

	opts := []check.Option{
		check.WithMatcher(match.New(matchOpts...)),
		check.WithRewriter(rewrite.New(rewrite.WithHierarchy(h))),
		check.WithLogger(a.logger),
		check.WithTracer(a.providers.Tracer),
		check.WithMetrics(metrics),
	}

	if detectionOnly {
		opts = append(opts, check.WithDetectionOnly())
	}

	return check.NewEngine(s, opts...)
}

func failedUnits(reports []*check.Report) error {
	failed := 0

	for _, report := range reports {
		if report.Err != nil {
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUnitsFailed, failed, len(reports))
	}

	return nil
}

// writeFile replaces path keeping its permissions.
func writeFile(path string, data []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	err = os.WriteFile(path, data, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
