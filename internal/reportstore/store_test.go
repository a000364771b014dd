package reportstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"reportd/internal/report"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func storedAt(id string, at time.Time) report.StoredReport {
	return report.StoredReport{
		ID:          id,
		CreatedAt:   at,
		Type:        "bug",
		Message:     "message " + id,
		Platform:    "web",
		AppVersion:  "1.0.0",
		Status:      report.StatusReceived,
		Fingerprint: report.Fingerprint("message " + id),
	}
}

func TestInsertAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	summary := "expanded description"
	category := "ui_issue"
	severity := "high"
	action := "check the save handler"
	confidence := 0.8

	in := storedAt("r1", time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC))
	in.Summary = &summary
	in.Category = &category
	in.Severity = &severity
	in.DeveloperAction = &action
	in.Confidence = &confidence
	in.SimilarTo = []string{"r0"}

	if err := store.InsertReport(ctx, in); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "r1" || got.Status != report.StatusReceived {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) {
		t.Fatalf("created_at: %v", got.CreatedAt)
	}
	if got.Category == nil || *got.Category != "ui_issue" {
		t.Fatalf("category: %v", got.Category)
	}
	if got.Confidence == nil || *got.Confidence != 0.8 {
		t.Fatalf("confidence: %v", got.Confidence)
	}
	if len(got.SimilarTo) != 1 || got.SimilarTo[0] != "r0" {
		t.Fatalf("similar_to: %v", got.SimilarTo)
	}
}

func TestNullEnrichmentFieldsSurviveRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.InsertReport(ctx, storedAt("r1", time.Now().UTC())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := store.GetReport(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Summary != nil || got.Category != nil || got.Severity != nil || got.DeveloperAction != nil || got.Confidence != nil {
		t.Fatalf("expected null enrichment fields, got %+v", got)
	}
	if got.SimilarTo == nil || len(got.SimilarTo) != 0 {
		t.Fatalf("similar_to should round-trip as an empty list: %v", got.SimilarTo)
	}
}

func TestInsertDuplicateIDFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	row := storedAt("dup", time.Now().UTC())
	if err := store.InsertReport(ctx, row); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := store.InsertReport(ctx, row); err == nil {
		t.Fatal("second insert with the same id must fail")
	}
}

func TestRecentByTypeOrderAndBound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		if err := store.InsertReport(ctx, storedAt(fmt.Sprintf("bug%d", i), base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	crash := storedAt("crash0", base.Add(10*time.Minute))
	crash.Type = "crash"
	if err := store.InsertReport(ctx, crash); err != nil {
		t.Fatalf("insert crash: %v", err)
	}

	got, err := store.RecentByType(ctx, "bug", 3)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("limit not applied: %d rows", len(got))
	}
	if got[0].ID != "bug4" || got[1].ID != "bug3" || got[2].ID != "bug2" {
		t.Fatalf("wrong order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
	for _, r := range got {
		if r.Type != "bug" {
			t.Fatalf("type filter leaked: %+v", r)
		}
	}
}

func TestRecentReportsAcrossTypes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	older := storedAt("older", base)
	newer := storedAt("newer", base.Add(time.Hour))
	newer.Type = "crash"
	for _, r := range []report.StoredReport{older, newer} {
		if err := store.InsertReport(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := store.RecentReports(ctx, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "newer" || got[1].ID != "older" {
		t.Fatalf("unexpected listing: %+v", got)
	}
}

func TestGetReportNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetReport(context.Background(), "missing")

	var re *report.Error
	if !errors.As(err, &re) || re.Code != report.CodeNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
}
