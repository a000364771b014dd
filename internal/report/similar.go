package report

import (
	"context"
	"log"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// RecencyScanner is the store operation the matcher depends on: the most
// recent stored reports of one type, newest first, bounded.
type RecencyScanner interface {
	RecentByType(ctx context.Context, reportType string, limit int) ([]StoredReport, error)
}

// Matcher links a new report to previously stored reports judged similar.
// This is intentionally a cheap local heuristic layered over a bounded
// recency scan, not semantic similarity: an enriched-category match first,
// then fingerprint equality, then case-insensitive substring containment.
type Matcher struct {
	store   RecencyScanner
	metrics *Metrics
	window  int
	cap     int
}

func NewMatcher(store RecencyScanner, metrics *Metrics) *Matcher {
	return &Matcher{store: store, metrics: metrics, window: SimilarWindow, cap: SimilarCap}
}

// FindSimilar returns an ordered, size-bounded, duplicate-free list of
// candidate report identifiers. Candidates keep the store's
// recency-descending scan order; there is no re-sorting by score. A scan
// failure degrades to an empty result and is never fatal.
func (m *Matcher) FindSimilar(ctx context.Context, rep IncomingReport, enrichment EnrichmentResult, fingerprint, selfID string) []string {
	ctx, span := Tracer().Start(ctx, "report.similar")
	defer span.End()

	recent, err := m.store.RecentByType(ctx, rep.Type, m.window)
	if err != nil {
		log.Printf("report similar_scan_failed type=%s err=%q", rep.Type, err.Error())
		span.RecordError(err)
		m.metrics.RecordSimilarFailed(ctx)
		return nil
	}

	category := ""
	if !enrichment.Empty() && enrichment.Category != DefaultCategory {
		category = enrichment.Category
	}
	message := strings.ToLower(strings.TrimSpace(rep.Message))

	var candidates []string
	for _, stored := range recent {
		if stored.ID == selfID {
			continue
		}
		if m.matches(stored, category, fingerprint, message) {
			candidates = append(candidates, stored.ID)
			if len(candidates) >= m.cap {
				break
			}
		}
	}
	span.SetAttributes(attribute.Int("report.similar_count", len(candidates)))
	return candidates
}

func (m *Matcher) matches(stored StoredReport, category, fingerprint, message string) bool {
	if category != "" && stored.Category != nil && *stored.Category == category {
		return true
	}
	if stored.Fingerprint == fingerprint {
		return true
	}
	return strings.Contains(strings.ToLower(stored.Message), message)
}
