package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricMatchesTotal       = "exfang.matches.total"
	metricRewritesTotal      = "exfang.rewrites.total"
	metricDetectionOnlyTotal = "exfang.detection_only.total"
	metricUnitsTotal         = "exfang.units.total"
	metricUnitFailuresTotal  = "exfang.unit.failures.total"
	metricUnitDuration       = "exfang.unit.duration.seconds"
	metricTemplatesLoaded    = "exfang.templates.loaded"

	attrLanguage = "language"
)

// EngineMetrics holds the per-unit instruments of the check engine. A nil
// *EngineMetrics records nothing.
type EngineMetrics struct {
	matches       metric.Int64Counter
	rewrites      metric.Int64Counter
	detectionOnly metric.Int64Counter
	units         metric.Int64Counter
	failures      metric.Int64Counter
	duration      metric.Float64Histogram
}

// UnitStats is the outcome of checking one unit.
type UnitStats struct {
	Language      string
	Matches       int
	Rewrites      int
	DetectionOnly int
	Failed        bool
	Duration      time.Duration
}

// NewEngineMetrics creates the engine instruments on mt. templates reports
// the size of the loaded store for the templates gauge; nil skips the gauge.
func NewEngineMetrics(mt metric.Meter, templates func() int) (*EngineMetrics, error) {
	b := newMetricBuilder(mt)

	em := &EngineMetrics{
		matches:       b.counter(metricMatchesTotal, "Template matches found", "{match}"),
		rewrites:      b.counter(metricRewritesTotal, "Matches rewritten", "{match}"),
		detectionOnly: b.counter(metricDetectionOnlyTotal, "Matches reported without a rewrite", "{match}"),
		units:         b.counter(metricUnitsTotal, "Units checked", "{unit}"),
		failures:      b.counter(metricUnitFailuresTotal, "Units aborted by an invariant violation", "{unit}"),
		duration:      b.histogram(metricUnitDuration, "Per-unit check duration in seconds", "s", durationBucketBoundaries...),
	}

	var loaded metric.Int64ObservableGauge
	if templates != nil {
		loaded = b.gauge(metricTemplatesLoaded, "Templates in the loaded store", "{template}")
	}

	if b.err != nil {
		return nil, b.err
	}

	if templates != nil {
		_, err := mt.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(loaded, int64(templates()))

			return nil
		}, loaded)
		if err != nil {
			return nil, fmt.Errorf("register %s callback: %w", metricTemplatesLoaded, err)
		}
	}

	return em, nil
}

// RecordUnit records one checked unit.
func (em *EngineMetrics) RecordUnit(ctx context.Context, stats UnitStats) {
	if em == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrLanguage, stats.Language))

	em.units.Add(ctx, 1, attrs)
	em.duration.Record(ctx, stats.Duration.Seconds(), attrs)

	if stats.Failed {
		em.failures.Add(ctx, 1, attrs)

		return
	}

	em.matches.Add(ctx, int64(stats.Matches), attrs)
	em.rewrites.Add(ctx, int64(stats.Rewrites), attrs)
	em.detectionOnly.Add(ctx, int64(stats.DetectionOnly), attrs)
}
