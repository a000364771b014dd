// Package report implements the report-submission pipeline: validation,
// AI enrichment, similarity matching, and durable persistence of end-user
// problem reports. Enrichment and similarity are best-effort stages; the
// single atomic insert into the store is the only operation whose failure
// aborts a submission.
package report

import (
	"strings"
	"time"
)

// ValidTypes is the fixed enumeration of accepted report types.
var ValidTypes = []string{"crash", "slow", "bug", "suggestion"}

const (
	DefaultPlatform   = "web"
	DefaultAppVersion = "1.0.0"

	// StatusReceived is the lifecycle status assigned to every row this
	// pipeline creates. Rows are never updated in place afterward.
	StatusReceived = "received"

	// MinMessageChars is the minimum accepted message length.
	MinMessageChars = 3

	// SimilarCap bounds the candidate list serialized into a new row.
	SimilarCap = 3

	// SimilarWindow is the recency window scanned for candidates.
	SimilarWindow = 25
)

// IncomingReport is the validated submission payload handed to the pipeline
// by the HTTP boundary. It lives for the duration of one request.
type IncomingReport struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Platform   string `json:"platform"`
	AppVersion string `json:"app_version"`
}

// Normalize fills the optional fields with their documented defaults.
func (r *IncomingReport) Normalize() {
	if strings.TrimSpace(r.Platform) == "" {
		r.Platform = DefaultPlatform
	}
	if strings.TrimSpace(r.AppVersion) == "" {
		r.AppVersion = DefaultAppVersion
	}
}

// Validate enforces the submission invariants: type must be a member of
// ValidTypes and the message must be at least MinMessageChars long. A
// violation is a client error; no pipeline stage runs after it.
func (r IncomingReport) Validate() error {
	if len(strings.TrimSpace(r.Message)) < MinMessageChars {
		return NewValidationError("message must be at least 3 characters")
	}
	for _, t := range ValidTypes {
		if r.Type == t {
			return nil
		}
	}
	return NewValidationError("type must be one of: " + strings.Join(ValidTypes, ", "))
}

// EnrichmentResult is the machine-generated elaboration of a raw report.
// The zero value is a first-class "enrichment skipped or failed" outcome,
// never an error.
type EnrichmentResult struct {
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Severity        string  `json:"severity"`
	DeveloperAction string  `json:"developer_action"`
	Confidence      float64 `json:"confidence"`
}

// Empty reports whether enrichment was skipped or failed.
func (e EnrichmentResult) Empty() bool {
	return e == EnrichmentResult{}
}

// StoredReport is the durable record created exactly once per submission.
// Enrichment fields are nil when enrichment did not run.
type StoredReport struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	Type        string    `json:"type"`
	Message     string    `json:"message"`
	Platform    string    `json:"platform"`
	AppVersion  string    `json:"app_version"`
	Status      string    `json:"status"`
	Fingerprint string    `json:"fingerprint"`

	Summary         *string  `json:"summary"`
	Category        *string  `json:"category"`
	Severity        *string  `json:"severity"`
	DeveloperAction *string  `json:"developer_action"`
	Confidence      *float64 `json:"confidence"`

	SimilarTo []string `json:"similar_to"`
}

// SubmissionResult is the outward-facing outcome of one accepted submission.
type SubmissionResult struct {
	ReportID     string `json:"report_id"`
	Status       string `json:"status"`
	AIEnriched   bool   `json:"ai_enriched"`
	Category     string `json:"category,omitempty"`
	Severity     string `json:"severity,omitempty"`
	SimilarCount int    `json:"similar_count"`
}
