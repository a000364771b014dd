// Package httpapi is the HTTP boundary for the report pipeline. It decodes
// JSON shape only; submission invariants are enforced by the pipeline, and
// their violations come back as typed errors mapped to status codes here.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"reportd/internal/report"
)

const listLimit = 50

// Submitter runs the submission pipeline for one request.
type Submitter interface {
	Submit(ctx context.Context, rep report.IncomingReport) (report.SubmissionResult, error)
}

// Reader is the read-path projection over stored reports.
type Reader interface {
	RecentReports(ctx context.Context, limit int) ([]report.StoredReport, error)
	GetReport(ctx context.Context, id string) (report.StoredReport, error)
}

type Server struct {
	pipeline Submitter
	reader   Reader
	pdf      *PDFRenderer
}

func NewServer(pipeline Submitter, reader Reader) http.Handler {
	s := &Server{
		pipeline: pipeline,
		reader:   reader,
		pdf:      NewPDFRenderer(),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/reports", s.handleReports)
	mux.HandleFunc("/v1/reports/", s.handleReportByID)
	mux.HandleFunc("/v1/health", s.handleHealth)
	return withCORS(mux)
}

// withCORS mirrors the permissive policy the browser widget depends on.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	var re *report.Error
	if errors.As(err, &re) {
		writeJSON(w, re.Status, map[string]any{
			"ok": false,
			"error": map[string]any{
				"code":      re.Code,
				"message":   re.Message,
				"transient": re.Transient,
			},
		})
		return
	}
	writeJSON(w, 500, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":      report.CodeInternal,
			"message":   err.Error(),
			"transient": true,
		},
	})
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return []byte("{}"), nil
	}
	blob, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		blob = []byte("{}")
	}
	return blob, nil
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmit(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	blob, err := readBody(r)
	if err != nil {
		writeError(w, report.NewValidationError("invalid body: "+err.Error()))
		return
	}
	var rep report.IncomingReport
	if err := json.Unmarshal(blob, &rep); err != nil {
		writeError(w, report.NewValidationError("invalid json: "+err.Error()))
		return
	}

	result, err := s.pipeline.Submit(r.Context(), rep)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, 200, result)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reader.RecentReports(r.Context(), listLimit)
	if err != nil {
		writeError(w, report.NewInternalError("failed to retrieve reports"))
		return
	}
	writeJSON(w, 200, map[string]any{
		"reports": reports,
		"count":   len(reports),
	})
}

func (s *Server) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/reports/")
	wantPDF := false
	if strings.HasSuffix(path, "/pdf") {
		wantPDF = true
		path = strings.TrimSuffix(path, "/pdf")
	}
	id := strings.Trim(path, "/")
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	rep, err := s.reader.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	switch {
	case wantPDF:
		pdf, err := s.pdf.Render(r.Context(), rep)
		if err != nil {
			writeError(w, report.NewInternalError("pdf render failed: "+err.Error()))
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	case strings.Contains(r.Header.Get("Accept"), "text/html"):
		page, err := RenderReportHTML(rep)
		if err != nil {
			writeError(w, report.NewInternalError("render failed: "+err.Error()))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(page))
	default:
		writeJSON(w, 200, rep)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, 200, map[string]any{"status": "ok", "service": "reportd"})
}
