package report

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the name used for OTel instrumentation.
const InstrumentationName = "reportd/internal/report"

// Tracer returns the tracer for the report pipeline. With no provider
// configured the global tracer is a noop, so span recording is
// fire-and-forget and never affects control flow.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Metrics holds the pipeline counters. A nil or uninitialized Metrics is
// safe to record against; every recorder is a no-op in that case.
type Metrics struct {
	submittedTotal     metric.Int64Counter
	enrichFailedTotal  metric.Int64Counter
	similarFailedTotal metric.Int64Counter

	initialized bool
}

// NewMetrics creates the pipeline counters on the given meter. A nil meter
// uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	m.submittedTotal, err = meter.Int64Counter(
		"reports.submitted",
		metric.WithDescription("Reports durably stored with status received"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.enrichFailedTotal, err = meter.Int64Counter(
		"reports.enrich.failed",
		metric.WithDescription("Enrichment attempts downgraded to an empty result"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.similarFailedTotal, err = meter.Int64Counter(
		"reports.similar.failed",
		metric.WithDescription("Similarity scans downgraded to an empty candidate set"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// RecordSubmitted records one successful submission.
func (m *Metrics) RecordSubmitted(ctx context.Context, reportType, platform string) {
	if m == nil || !m.initialized {
		return
	}
	m.submittedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", reportType),
		attribute.String("platform", platform),
	))
}

// RecordEnrichFailed records one enrichment downgrade.
func (m *Metrics) RecordEnrichFailed(ctx context.Context, reason string) {
	if m == nil || !m.initialized {
		return
	}
	m.enrichFailedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordSimilarFailed records one similarity-scan downgrade.
func (m *Metrics) RecordSimilarFailed(ctx context.Context) {
	if m == nil || !m.initialized {
		return
	}
	m.similarFailedTotal.Add(ctx, 1)
}
