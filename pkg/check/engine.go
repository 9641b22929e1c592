// Package check is the integration layer between the engine and a host: it
// runs every stored template over compilation units, decides which matches
// are rewritten, and reports findings per unit.
package check

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/exfang/pkg/match"
	"github.com/Sumatoshi-tech/exfang/pkg/observability"
	"github.com/Sumatoshi-tech/exfang/pkg/pattern"
	"github.com/Sumatoshi-tech/exfang/pkg/rewrite"
	"github.com/Sumatoshi-tech/exfang/pkg/store"
	"github.com/Sumatoshi-tech/exfang/pkg/tree"
)

const (
	tracerName = "exfang.check"

	spanUnit     = "exfang.check.unit"
	spanTemplate = "exfang.check.template"
	spanRun      = "exfang.check.run"
)

// Input names one unit to check and loads it on demand, so parsing runs on
// the worker that checks the unit.
type Input struct {
	Name string
	Load func(ctx context.Context) (*tree.Unit, error)
}

// Units wraps already loaded units as inputs.
func Units(units ...*tree.Unit) []Input {
	inputs := make([]Input, 0, len(units))

	for _, unit := range units {
		inputs = append(inputs, Input{
			Name: unit.Name,
			Load: func(context.Context) (*tree.Unit, error) { return unit, nil },
		})
	}

	return inputs
}

// Rewriter builds edits for matches; *rewrite.Rewriter implements it.
type Rewriter interface {
	Rewrite(unit *tree.Unit, tmpl *pattern.Template, result pattern.MatchResult) (*rewrite.Edit, error)
}

// Engine checks units against a template store. It is safe for concurrent
// use; units share only the read-only store.
type Engine struct {
	store      *store.Store
	matcher    *match.Matcher
	rewriter   Rewriter
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    *observability.EngineMetrics
	detectOnly bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMatcher replaces the default matcher.
func WithMatcher(m *match.Matcher) Option {
	return func(e *Engine) {
		e.matcher = m
	}
}

// WithRewriter replaces the default rewriter.
func WithRewriter(r Rewriter) Option {
	return func(e *Engine) {
		e.rewriter = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer. The default is the global provider's.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithMetrics records per-unit engine metrics.
func WithMetrics(metrics *observability.EngineMetrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithDetectionOnly disables rewriting; every finding is detection-only.
func WithDetectionOnly() Option {
	return func(e *Engine) {
		e.detectOnly = true
	}
}

// NewEngine creates an engine over s.
func NewEngine(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		matcher:  match.New(),
		rewriter: rewrite.New(),
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	return e
}

// CheckUnit runs every template over unit. Findings are ordered by the
// pre-order position of their roots. A finding overlapping an earlier
// rewritten finding is suppressed and stays detection-only.
//
// An invariant violation aborts the unit: the returned report carries it in
// Err and the error is returned too.
func (e *Engine) CheckUnit(ctx context.Context, unit *tree.Unit) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, spanUnit, trace.WithAttributes(
		attribute.String("unit.name", unit.Name),
		attribute.String("unit.language", unit.Language),
	))
	defer span.End()

	start := time.Now()
	report := &Report{Unit: unit.Name, Language: unit.Language}

	findings, err := e.findings(ctx, unit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unit aborted")
		e.metrics.RecordUnit(ctx, observability.UnitStats{Language: unit.Language, Failed: true, Duration: time.Since(start)})

		return report.fail(err), err
	}

	report.Findings = findings
	rewrites, detectionOnly := report.Counts()

	span.SetAttributes(
		attribute.Int("exfang.findings", len(findings)),
		attribute.Int("exfang.rewrites", rewrites),
	)

	e.metrics.RecordUnit(ctx, observability.UnitStats{
		Language:      unit.Language,
		Matches:       len(findings),
		Rewrites:      rewrites,
		DetectionOnly: detectionOnly,
		Duration:      time.Since(start),
	})

	e.logger.DebugContext(ctx, "unit checked",
		"unit", unit.Name, "findings", len(findings), "rewrites", rewrites, "detection_only", detectionOnly)

	return report, nil
}

func (e *Engine) findings(ctx context.Context, unit *tree.Unit) ([]Finding, error) {
	order, err := tree.Order(unit.Tree, unit.Tree.Root())
	if err != nil {
		return nil, err
	}

	rank := make(map[tree.NodeID]int, len(order))
	for idx, id := range order {
		rank[id] = idx
	}

	var (
		results []pattern.MatchResult
		byName  = make(map[string]*pattern.Template)
	)

	for _, tmpl := range e.store.Templates() {
		err = ctx.Err()
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", unit.Name, err)
		}

		found, matchErr := e.matchTemplate(ctx, tmpl, unit)
		if matchErr != nil {
			return nil, matchErr
		}

		byName[tmpl.Name] = tmpl
		results = append(results, firstPerRoot(found)...)
	}

	slices.SortStableFunc(results, func(a, b pattern.MatchResult) int {
		return cmp.Or(
			cmp.Compare(rank[a.Root], rank[b.Root]),
			cmp.Compare(a.Window.From, b.Window.From),
			cmp.Compare(a.Template, b.Template),
		)
	})

	var (
		findings []Finding
		rewrites []pattern.Span
	)

	for _, result := range results {
		finding := Finding{
			Template:    result.Template,
			Alternative: result.Alternative,
			Root:        result.Root,
			Window:      result.Window,
		}

		span, ok := unit.SpanOf(result.Root, result.Window)
		if ok {
			finding.Span = span
			finding.Text = textOf(unit.Source, span)
		}

		switch {
		case ok && overlapsAny(span, rewrites):
			finding.Suppressed = true
			finding.Reason = "overlaps an earlier rewrite"
		case e.detectOnly:
			finding.Reason = "detection only"
		default:
			edit, rewriteErr := e.rewriter.Rewrite(unit, byName[result.Template], result)
			if rewriteErr != nil {
				finding.err = rewriteErr
				finding.Reason = rewriteErr.Error()

				break
			}

			finding.Edit = edit
			rewrites = append(rewrites, edit.Span)
		}

		findings = append(findings, finding)
	}

	return findings, nil
}

func (e *Engine) matchTemplate(ctx context.Context, tmpl *pattern.Template, unit *tree.Unit) ([]pattern.MatchResult, error) {
	_, span := e.tracer.Start(ctx, spanTemplate, trace.WithAttributes(attribute.String("template.name", tmpl.Name)))
	defer span.End()

	found, err := e.matcher.MatchTemplate(tmpl, unit.Tree)
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("template %s on %s: %w", tmpl.Name, unit.Name, err)
	}

	span.SetAttributes(attribute.Int("exfang.matches", len(found)))

	return found, nil
}

// firstPerRoot keeps the first, most specific binding set per match site.
func firstPerRoot(results []pattern.MatchResult) []pattern.MatchResult {
	type site struct {
		root   tree.NodeID
		window pattern.Window
	}

	seen := make(map[site]bool, len(results))
	kept := results[:0:0]

	for _, result := range results {
		key := site{result.Root, result.Window}
		if !seen[key] {
			seen[key] = true
			kept = append(kept, result)
		}
	}

	return kept
}

func overlapsAny(span pattern.Span, taken []pattern.Span) bool {
	return slices.ContainsFunc(taken, span.Overlaps)
}

func textOf(source []byte, span pattern.Span) string {
	if span.Start < 0 || span.End > len(source) || span.Start > span.End {
		return ""
	}

	return string(source[span.Start:span.End])
}

// Run checks inputs on at most workers goroutines (GOMAXPROCS when workers
// is not positive) and returns one report per input, in input order.
//
// A unit that fails to load or hits an invariant violation gets a report with
// Err set; other units are unaffected. Cancelling ctx abandons the units not
// yet finished and returns the context error.
func (e *Engine) Run(ctx context.Context, inputs []Input, workers int) ([]*Report, error) {
	ctx, span := e.tracer.Start(ctx, spanRun, trace.WithAttributes(attribute.Int("exfang.units", len(inputs))))
	defer span.End()

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	reports := make([]*Report, len(inputs))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)

	for idx, input := range inputs {
		group.Go(func() error {
			err := groupCtx.Err()
			if err != nil {
				return err
			}

			reports[idx] = e.runOne(groupCtx, input)

			return groupCtx.Err()
		})
	}

	err := group.Wait()
	if err != nil {
		span.RecordError(err)

		return nil, fmt.Errorf("check run: %w", err)
	}

	return reports, nil
}

func (e *Engine) runOne(ctx context.Context, input Input) *Report {
	unit, err := input.Load(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "unit failed to load", "unit", input.Name, "error", err)

		return (&Report{Unit: input.Name}).fail(err)
	}

	report, err := e.CheckUnit(ctx, unit)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		e.logger.ErrorContext(ctx, "unit aborted", "unit", unit.Name, "error", err)
	}

	return report
}
