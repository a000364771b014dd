package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeCompleter struct {
	reply string
	err   error
	calls int
	block time.Duration
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.block > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.block):
		}
	}
	return f.reply, f.err
}

func sampleReport() IncomingReport {
	return IncomingReport{Type: "bug", Message: "App crashes on save", Platform: "ios", AppVersion: "1.0.0"}
}

func TestEnrichDisabledReturnsEmpty(t *testing.T) {
	e := NewEnricher(nil, nil, 0)
	if e.Enabled() {
		t.Fatal("nil completer should mean disabled")
	}
	got := e.Enrich(context.Background(), sampleReport())
	if !got.Empty() {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestEnrichBackendErrorDegrades(t *testing.T) {
	f := &fakeCompleter{err: errors.New("quota exceeded")}
	e := NewEnricher(f, nil, 0)
	got := e.Enrich(context.Background(), sampleReport())
	if !got.Empty() {
		t.Fatalf("backend error must degrade to empty, got %+v", got)
	}
	if f.calls != 1 {
		t.Fatalf("expected one call, got %d", f.calls)
	}
}

func TestEnrichTimeoutDegrades(t *testing.T) {
	f := &fakeCompleter{reply: "CATEGORY: ui_issue", block: time.Second}
	e := NewEnricher(f, nil, 10*time.Millisecond)
	got := e.Enrich(context.Background(), sampleReport())
	if !got.Empty() {
		t.Fatalf("timeout must degrade to empty, got %+v", got)
	}
}

func TestEnrichParsesFullReply(t *testing.T) {
	f := &fakeCompleter{reply: strings.Join([]string{
		"DESCRIPTION: Saving a document crashes the iOS app.",
		"CATEGORY: data_loss",
		"SEVERITY: Critical",
		"DEVELOPER_ACTION: Check the save handler for nil buffers.",
		"CONFIDENCE: 0.85",
	}, "\n")}
	e := NewEnricher(f, nil, 0)

	got := e.Enrich(context.Background(), sampleReport())
	if got.Category != "data_loss" {
		t.Fatalf("category: %q", got.Category)
	}
	if got.Severity != "critical" {
		t.Fatalf("severity: %q", got.Severity)
	}
	if got.Confidence != 0.85 {
		t.Fatalf("confidence: %v", got.Confidence)
	}
	if got.Description != "Saving a document crashes the iOS app." {
		t.Fatalf("description: %q", got.Description)
	}
	if got.DeveloperAction != "Check the save handler for nil buffers." {
		t.Fatalf("developer_action: %q", got.DeveloperAction)
	}
}

func TestParseEnrichReplyDefaults(t *testing.T) {
	for _, tc := range []struct {
		name  string
		reply string
		check func(t *testing.T, got EnrichmentResult)
	}{
		{
			name:  "missing confidence falls back",
			reply: "CATEGORY: ui_issue\nSEVERITY: low",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.Confidence != DefaultConfidence {
					t.Fatalf("confidence: %v", got.Confidence)
				}
				if got.Category != "ui_issue" {
					t.Fatalf("category: %q", got.Category)
				}
			},
		},
		{
			name:  "non-numeric confidence falls back per field",
			reply: "CATEGORY: ui_issue\nCONFIDENCE: very sure",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.Confidence != DefaultConfidence {
					t.Fatalf("confidence: %v", got.Confidence)
				}
				if got.Category != "ui_issue" {
					t.Fatal("bad confidence must not abort the rest of the parse")
				}
			},
		},
		{
			name:  "unrecognized keys ignored",
			reply: "CATEGORY: perf\nMOOD: grumpy\nSEVERITY: high",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.Category != "perf" || got.Severity != "high" {
					t.Fatalf("got %+v", got)
				}
			},
		},
		{
			name:  "key whitespace collapses to underscores",
			reply: "Developer  Action: restart the worker",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.DeveloperAction != "restart the worker" {
					t.Fatalf("developer_action: %q", got.DeveloperAction)
				}
			},
		},
		{
			name:  "empty reply keeps every default",
			reply: "",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.Category != DefaultCategory || got.Severity != DefaultSeverity {
					t.Fatalf("got %+v", got)
				}
				if got.Description != "App crashes on save" {
					t.Fatalf("description should fall back to the message: %q", got.Description)
				}
				if got.DeveloperAction != DefaultDeveloperAction {
					t.Fatalf("developer_action: %q", got.DeveloperAction)
				}
			},
		},
		{
			name:  "bogus severity normalizes to medium",
			reply: "SEVERITY: catastrophic",
			check: func(t *testing.T, got EnrichmentResult) {
				if got.Severity != DefaultSeverity {
					t.Fatalf("severity: %q", got.Severity)
				}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			tc.check(t, parseEnrichReply(tc.reply, "App crashes on save"))
		})
	}
}

func TestBuildEnrichPromptMentionsFields(t *testing.T) {
	prompt := buildEnrichPrompt(sampleReport())
	for _, want := range []string{"DESCRIPTION:", "CATEGORY:", "SEVERITY:", "DEVELOPER_ACTION:", "CONFIDENCE:", "App crashes on save", "ios"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q", want)
		}
	}
}
