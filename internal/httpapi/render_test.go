package httpapi

import (
	"strings"
	"testing"
	"time"

	"reportd/internal/report"
)

func TestRenderReportHTMLEnriched(t *testing.T) {
	summary := "Saving a document crashes the app on **iOS**."
	category := "data_loss"
	severity := "critical"
	action := "Check the save handler."

	page, err := RenderReportHTML(report.StoredReport{
		ID:         "r1",
		CreatedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Type:       "crash",
		Message:    "App crashes on save",
		Platform:   "ios",
		AppVersion: "2.1.0",
		Status:     report.StatusReceived,
		Summary:    &summary,
		Category:   &category,
		Severity:   &severity,

		DeveloperAction: &action,
		SimilarTo:       []string{"r0"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"App crashes on save", "data_loss", "critical", "<strong>iOS</strong>", "r0"} {
		if !strings.Contains(page, want) {
			t.Fatalf("page missing %q", want)
		}
	}
}

func TestRenderReportHTMLUnenriched(t *testing.T) {
	page, err := RenderReportHTML(report.StoredReport{
		ID:        "r2",
		CreatedAt: time.Now().UTC(),
		Type:      "bug",
		Message:   "<script>alert(1)</script>",
		Status:    report.StatusReceived,
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(page, "<script>alert(1)</script></h1>") {
		t.Fatal("title must be escaped")
	}
}
