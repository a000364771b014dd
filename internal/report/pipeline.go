package report

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Store is the persistence surface the pipeline depends on. InsertReport
// must be a single atomic row insert; concurrent submissions rely on it and
// on the random identifier scheme, never on cross-submission ordering.
type Store interface {
	RecencyScanner
	InsertReport(ctx context.Context, rep StoredReport) error
}

// Pipeline sequences fingerprinting, enrichment, similarity search, and
// persistence for one incoming report. Enrichment and similarity are
// independent best-effort stages; the insert is the only fatal step.
//
// A submission whose caller goes away after the insert committed is an
// at-least-once write with an unknown ack: the row exists, the response is
// lost, and there is no idempotency token to dedupe a client retry.
type Pipeline struct {
	store    Store
	enricher *Enricher
	matcher  *Matcher
	metrics  *Metrics
	clock    func() time.Time
}

func NewPipeline(store Store, enricher *Enricher, metrics *Metrics) *Pipeline {
	return &Pipeline{
		store:    store,
		enricher: enricher,
		matcher:  NewMatcher(store, metrics),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// WithClock substitutes the timestamp source. Used by tests.
func (p *Pipeline) WithClock(clock func() time.Time) *Pipeline {
	p.clock = clock
	return p
}

// Submit runs the full pipeline for one report. It either durably stores
// the report with status "received" and returns its identifier, or returns
// an error; there is no partial-success state.
func (p *Pipeline) Submit(ctx context.Context, rep IncomingReport) (SubmissionResult, error) {
	started := p.clock()

	if err := rep.Validate(); err != nil {
		return SubmissionResult{}, err
	}
	rep.Normalize()

	ctx, span := Tracer().Start(ctx, "report.submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.type", rep.Type),
		attribute.String("report.platform", rep.Platform),
	)

	id := uuid.NewString()
	createdAt := p.clock().UTC()

	enrichment := p.enricher.Enrich(ctx, rep)
	fingerprint := Fingerprint(rep.Message)
	similar := p.matcher.FindSimilar(ctx, rep, enrichment, fingerprint, id)

	stored := StoredReport{
		ID:          id,
		CreatedAt:   createdAt,
		Type:        rep.Type,
		Message:     rep.Message,
		Platform:    rep.Platform,
		AppVersion:  rep.AppVersion,
		Status:      StatusReceived,
		Fingerprint: fingerprint,
		SimilarTo:   similar,
	}
	if !enrichment.Empty() {
		stored.Summary = &enrichment.Description
		stored.Category = &enrichment.Category
		stored.Severity = &enrichment.Severity
		stored.DeveloperAction = &enrichment.DeveloperAction
		stored.Confidence = &enrichment.Confidence
	}

	if err := p.storeReport(ctx, stored); err != nil {
		log.Printf("report submit_failed report_id=%s type=%s err=%q", id, rep.Type, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "store insert failed")
		return SubmissionResult{}, NewInternalError("failed to store report")
	}

	p.metrics.RecordSubmitted(ctx, rep.Type, rep.Platform)
	log.Printf(
		"report submit_done report_id=%s type=%s enriched=%t similar=%d elapsed_ms=%d",
		id, rep.Type, !enrichment.Empty(), len(similar), p.clock().Sub(started).Milliseconds(),
	)

	result := SubmissionResult{
		ReportID:     id,
		Status:       StatusReceived,
		AIEnriched:   !enrichment.Empty(),
		SimilarCount: len(similar),
	}
	if !enrichment.Empty() {
		result.Category = enrichment.Category
		result.Severity = enrichment.Severity
	}
	return result, nil
}

func (p *Pipeline) storeReport(ctx context.Context, stored StoredReport) error {
	ctx, span := Tracer().Start(ctx, "report.store")
	defer span.End()
	return p.store.InsertReport(ctx, stored)
}
