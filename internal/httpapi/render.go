package httpapi

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"reportd/internal/report"
)

const detailCSS = `body{font-family:system-ui,sans-serif;color:#1c1917;max-width:760px;margin:2rem auto;padding:0 1rem;}
.report-meta{color:#44403c;font-size:0.9rem;margin-bottom:1rem;}
.report-meta strong{color:#1c1917;}
.report-badge{display:inline-block;background:#fef3c7;color:#78350f;border:1px solid #fcd34d;border-radius:4px;padding:0.1rem 0.5rem;margin-right:0.4rem;font-size:0.8rem;}
.report-body{border-top:1px solid #d6d3d1;padding-top:1rem;}
h1{font-size:1.3rem;}`

// RenderReportHTML builds the ops detail page for one stored report. The
// enriched summary and developer action are treated as markdown.
func RenderReportHTML(rep report.StoredReport) (string, error) {
	var markdown strings.Builder
	if rep.Summary != nil {
		markdown.WriteString(*rep.Summary + "\n")
	} else {
		markdown.WriteString(rep.Message + "\n")
	}
	if rep.DeveloperAction != nil {
		markdown.WriteString("\n**Next step:** " + *rep.DeveloperAction + "\n")
	}
	if len(rep.SimilarTo) > 0 {
		markdown.WriteString("\nSimilar reports:\n")
		for _, id := range rep.SimilarTo {
			markdown.WriteString("- `" + id + "`\n")
		}
	}

	var body strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(markdown.String()), &body); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	var badges strings.Builder
	if rep.Category != nil {
		badges.WriteString("<span class='report-badge'>" + html.EscapeString(*rep.Category) + "</span>")
	}
	if rep.Severity != nil {
		badges.WriteString("<span class='report-badge'>" + html.EscapeString(*rep.Severity) + "</span>")
	}

	var meta strings.Builder
	meta.WriteString("<div><strong>Report:</strong> " + html.EscapeString(rep.ID) + "</div>")
	meta.WriteString("<div><strong>Type:</strong> " + html.EscapeString(rep.Type) + " on " + html.EscapeString(rep.Platform) + " " + html.EscapeString(rep.AppVersion) + "</div>")
	meta.WriteString("<div><strong>Received:</strong> " + html.EscapeString(rep.CreatedAt.Format(time.RFC1123)) + "</div>")

	return "<!doctype html><html><head><meta charset='utf-8'><title>Report " + html.EscapeString(rep.ID) + "</title>" +
		"<style>" + detailCSS + "</style></head><body>" +
		"<h1>" + html.EscapeString(rep.Message) + "</h1>" +
		"<div class='report-meta'>" + meta.String() + "</div>" +
		"<div>" + badges.String() + "</div>" +
		"<div class='report-body'>" + body.String() + "</div>" +
		"</body></html>", nil
}

// PDFRenderer prints the report detail page to PDF through headless
// Chromium. Export is an ops convenience; it sits outside the submission
// pipeline and shares none of its failure policy.
type PDFRenderer struct {
	chromePath string
}

func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{chromePath: detectChromePath()}
}

func (r *PDFRenderer) Render(ctx context.Context, rep report.StoredReport) ([]byte, error) {
	htmlDoc, err := RenderReportHTML(rep)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if r.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString([]byte(htmlDoc))
	if err := chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.5).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	); err != nil {
		return nil, err
	}
	return pdf, nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
