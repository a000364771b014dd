package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const enrichSystemPrompt = "You are a triage assistant for an in-app problem reporting system. Reply with exactly the requested KEY: value lines and nothing else."

// DefaultEnrichTimeout bounds the AI completion call. Hitting it is a
// recoverable failure identical to any other backend error.
const DefaultEnrichTimeout = 20 * time.Second

// Enrichment defaults applied per missing or unparseable field.
const (
	DefaultCategory        = "unknown"
	DefaultSeverity        = "medium"
	DefaultConfidence      = 0.5
	DefaultDeveloperAction = "Investigate issue"
)

// Completer is the black-box text-completion backend: prompt in, raw text
// or failure out. No retries are performed at this layer.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type AnthropicCompleter struct {
	messages AnthropicMessager
}

type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClientCreator func(apiKey string) AnthropicMessager

func defaultAnthropicCreator(apiKey string) AnthropicMessager {
	c := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &c.Messages
}

var newAnthropicClient AnthropicClientCreator = defaultAnthropicCreator

// NewAnthropicCompleterFromEnv builds the production completer, or returns
// nil when ANTHROPIC_API_KEY is unset. A nil completer means enrichment is
// disabled; that is the expected steady state without a configured key,
// not an error.
func NewAnthropicCompleterFromEnv() *AnthropicCompleter {
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil
	}
	return &AnthropicCompleter{messages: newAnthropicClient(apiKey)}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.ModelClaudeSonnet4_20250514,
		MaxTokens:   1024,
		System:      []anthropic.TextBlockParam{{Text: enrichSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String(), nil
}

// Enricher turns a raw report into an EnrichmentResult. It never fails past
// its own boundary: any backend error, timeout, or malformed reply degrades
// to the zero EnrichmentResult.
type Enricher struct {
	completer Completer
	metrics   *Metrics
	timeout   time.Duration
}

// NewEnricher builds an Enricher over the given backend. A nil completer
// disables enrichment. A non-positive timeout uses DefaultEnrichTimeout.
func NewEnricher(completer Completer, metrics *Metrics, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultEnrichTimeout
	}
	return &Enricher{completer: completer, metrics: metrics, timeout: timeout}
}

// Enabled reports whether an AI backend is configured.
func (e *Enricher) Enabled() bool {
	return e != nil && e.completer != nil
}

// Enrich runs the enrichment stage for one report. The report must already
// have passed validation.
func (e *Enricher) Enrich(ctx context.Context, rep IncomingReport) EnrichmentResult {
	if !e.Enabled() {
		return EnrichmentResult{}
	}

	ctx, span := Tracer().Start(ctx, "report.enrich")
	defer span.End()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.completer.Complete(callCtx, buildEnrichPrompt(rep))
	if err != nil {
		reason := "backend_error"
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "timeout"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "enrichment degraded")
		e.metrics.RecordEnrichFailed(ctx, reason)
		return EnrichmentResult{}
	}

	result := parseEnrichReply(raw, rep.Message)
	span.SetAttributes(
		attribute.String("report.category", result.Category),
		attribute.String("report.severity", result.Severity),
		attribute.Float64("report.confidence", result.Confidence),
	)
	return result
}

func buildEnrichPrompt(rep IncomingReport) string {
	var b strings.Builder
	b.WriteString("A user submitted an in-app problem report.\n\n")
	fmt.Fprintf(&b, "Type: %s\nPlatform: %s\nMessage: %s\n\n", rep.Type, rep.Platform, rep.Message)
	b.WriteString(`Analyze the report and reply with exactly these lines:

DESCRIPTION: <one-paragraph expanded description of the problem>
CATEGORY: <short snake_case label, e.g. ui_issue, data_loss, performance>
SEVERITY: <one of: critical, high, medium, low>
DEVELOPER_ACTION: <one sentence telling a developer what to do next>
CONFIDENCE: <number between 0 and 1>

No other text before or after the lines.`)
	return b.String()
}

// parseEnrichReply parses the line-oriented KEY: value reply. Unrecognized
// keys are ignored; missing keys fall back to defaults. A non-numeric
// confidence is a parse failure for that field only.
func parseEnrichReply(raw, originalMessage string) EnrichmentResult {
	fields := map[string]string{}
	for _, line := range strings.Split(raw, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(key))), "_")
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
	}

	result := EnrichmentResult{
		Description:     originalMessage,
		Category:        DefaultCategory,
		Severity:        DefaultSeverity,
		DeveloperAction: DefaultDeveloperAction,
		Confidence:      DefaultConfidence,
	}
	if v, ok := fields["description"]; ok {
		result.Description = v
	}
	if v, ok := fields["category"]; ok {
		result.Category = v
	}
	if v, ok := fields["severity"]; ok {
		result.Severity = normalizeSeverity(v)
	}
	if v, ok := fields["developer_action"]; ok {
		result.DeveloperAction = v
	}
	if v, ok := fields["confidence"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			result.Confidence = f
		}
	}
	return result
}

func normalizeSeverity(v string) string {
	switch strings.ToLower(v) {
	case "critical", "high", "medium", "low":
		return strings.ToLower(v)
	default:
		return DefaultSeverity
	}
}
