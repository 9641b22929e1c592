package commands

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/exfang/pkg/check"
	"github.com/Sumatoshi-tech/exfang/pkg/config"
	"github.com/Sumatoshi-tech/exfang/pkg/frontend"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
)

type applyOptions struct {
	since     string
	diff      bool
	write     bool
	passes    int
	templates []string
}

// fileResult is the outcome of apply for one file across all passes.
type fileResult struct {
	Path     string   `json:"path"               yaml:"path"`
	Rewrites int      `json:"rewrites"           yaml:"rewrites"`
	Imports  []string `json:"imports,omitempty"  yaml:"imports,omitempty"`
	Diff     string   `json:"diff,omitempty"     yaml:"diff,omitempty"`
	Error    string   `json:"error,omitempty"    yaml:"error,omitempty"`

	original []byte
	current  []byte
}

func newApplyCommand(a *app) *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply [flags] PATH...",
		Short: "Rewrite template matches",
		Long: `Apply rewrites every match of the loaded templates and adds the imports the
replacements need. Without --write the result is printed as a unified diff.

--passes N repeats the rewrite until nothing changes or N passes ran.
Templates marked non-idempotent run in the first pass only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("passes") {
				opts.passes = a.cfg.Engine.Passes
			}

			if !opts.write {
				opts.diff = true
			}

			return a.runApply(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.since, "since", "", "only rewrite files changed since this Git revision")
	cmd.Flags().BoolVar(&opts.diff, "diff", false, "print unified diffs (default without --write)")
	cmd.Flags().BoolVar(&opts.write, "write", false, "write rewritten files in place")
	cmd.Flags().IntVar(&opts.passes, "passes", 1, "maximum rewrite passes")
	cmd.Flags().StringSliceVarP(&opts.templates, "template", "t", nil, "run only these templates")

	return cmd
}

func (a *app) runApply(ctx context.Context, opts *applyOptions, paths []string) error {
	if opts.passes < 1 {
		return config.ErrInvalidPasses
	}

	s, err := a.selectedStore(opts.templates)
	if err != nil {
		return err
	}

	metrics, err := a.engineMetrics(s)
	if err != nil {
		return err
	}

	start := time.Now()
	set := frontend.NewSet(a.cfg.Engine.Language)

	files, err := collectSources(paths, set)
	if err != nil {
		return err
	}

	files, err = changedOnly(files, opts.since)
	if err != nil {
		return err
	}

	hierarchy, err := hierarchyFor(files, set)
	if err != nil {
		return err
	}

	results := make(map[string]*fileResult, len(files))
	overlay := make(map[string][]byte)
	pending := files

	for pass := 1; pass <= opts.passes && len(pending) > 0; pass++ {
		passStore := s
		if pass > 1 {
			passStore, err = idempotentOnly(s)
			if err != nil {
				return err
			}
		}

		engine := a.newEngine(passStore, hierarchy, metrics, false)

		reports, runErr := engine.Run(ctx, sourceInputs(pending, set, overlay), a.cfg.Engine.Workers)
		if runErr != nil {
			return runErr
		}

		pending = a.applyReports(ctx, set, reports, results, overlay)

		a.logger.DebugContext(ctx, "apply pass finished", "pass", pass, "changed", len(pending))
	}

	return a.finishApply(files, results, opts, time.Since(start))
}

// applyReports folds one pass into results and overlay and returns the files
// that changed in this pass.
func (a *app) applyReports(
	ctx context.Context, set *frontend.Set, reports []*check.Report,
	results map[string]*fileResult, overlay map[string][]byte,
) []string {
	var changed []string

	for _, report := range reports {
		result := results[report.Unit]
		if result == nil {
			result = &fileResult{Path: report.Unit}
			results[report.Unit] = result
		}

		if report.Err != nil {
			result.Error = report.Err.Error()

			continue
		}

		rewrites, _ := report.Counts()
		if rewrites == 0 {
			continue
		}

		out, err := a.rewriteUnit(ctx, set, report, overlay)
		if err != nil {
			result.Error = err.Error()

			continue
		}

		if result.original == nil {
			result.original = overlay[report.Unit]
		}

		result.Rewrites += rewrites
		result.Imports = mergeImports(result.Imports, report.Imports())
		result.current = out
		overlay[report.Unit] = out

		changed = append(changed, report.Unit)
	}

	return changed
}

func (a *app) rewriteUnit(ctx context.Context, set *frontend.Set, report *check.Report, overlay map[string][]byte) ([]byte, error) {
	src, ok := overlay[report.Unit]
	if !ok {
		var err error

		src, err = readSource(report.Unit)
		if err != nil {
			return nil, err
		}

		overlay[report.Unit] = src
	}

	out, err := report.Apply(src)
	if err != nil {
		return nil, fmt.Errorf("apply edits: %w", err)
	}

	imports := report.Imports()
	if len(imports) == 0 {
		return out, nil
	}

	fe, err := set.For(report.Unit)
	if err != nil {
		return nil, err
	}

	out, err = fe.AddImports(ctx, report.Unit, out, imports)
	if err != nil {
		return nil, fmt.Errorf("add imports: %w", err)
	}

	return out, nil
}

func (a *app) finishApply(files []string, results map[string]*fileResult, opts *applyOptions, elapsed time.Duration) error {
	ordered := make([]*fileResult, 0, len(results))
	failed := 0

	for _, path := range files {
		result, ok := results[path]
		if !ok || (result.Rewrites == 0 && result.Error == "") {
			continue
		}

		if result.Error != "" {
			failed++
		}

		if result.Rewrites > 0 {
			if opts.diff {
				result.Diff = rewrite.UnifiedDiff(path, result.original, result.current)
			}

			if opts.write {
				err := writeFile(path, result.current)
				if err != nil {
					return err
				}
			}
		}

		ordered = append(ordered, result)
	}

	err := a.renderApply(ordered, len(files), elapsed)
	if err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrUnitsFailed, failed, len(files))
	}

	return nil
}

// idempotentOnly drops templates that may keep matching their own output.
func idempotentOnly(s *store.Store) (*store.Store, error) {
	var names []string

	for _, tmpl := range s.Templates() {
		if !tmpl.NonIdempotent {
			names = append(names, tmpl.Name)
		}
	}

	if len(names) == 0 {
		return store.New()
	}

	return s.Select(names...)
}

func mergeImports(have, add []string) []string {
	merged := append(slices.Clone(have), add...)
	slices.Sort(merged)

	return slices.Compact(merged)
}
