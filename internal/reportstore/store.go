// Package reportstore persists enriched reports in SQLite. Rows are
// append-mostly: the pipeline inserts each report exactly once and never
// updates it afterward.
package reportstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"reportd/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id               TEXT PRIMARY KEY,
	created_at       TEXT NOT NULL,
	type             TEXT NOT NULL,
	message          TEXT NOT NULL,
	platform         TEXT,
	app_version      TEXT,
	status           TEXT NOT NULL DEFAULT 'received',
	fingerprint      TEXT NOT NULL DEFAULT '',
	summary          TEXT,
	category         TEXT,
	severity         TEXT,
	developer_action TEXT,
	confidence       REAL,
	similar_to       TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_reports_type_created ON reports (type, created_at DESC);
`

// Store is a SQLite-backed report store. The single-connection pool plus the
// WAL journal keeps concurrent inserts serialized without losing rows.
type Store struct {
	db *sqlx.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type reportRow struct {
	ID              string          `db:"id"`
	CreatedAt       string          `db:"created_at"`
	Type            string          `db:"type"`
	Message         string          `db:"message"`
	Platform        string          `db:"platform"`
	AppVersion      string          `db:"app_version"`
	Status          string          `db:"status"`
	Fingerprint     string          `db:"fingerprint"`
	Summary         sql.NullString  `db:"summary"`
	Category        sql.NullString  `db:"category"`
	Severity        sql.NullString  `db:"severity"`
	DeveloperAction sql.NullString  `db:"developer_action"`
	Confidence      sql.NullFloat64 `db:"confidence"`
	SimilarTo       string          `db:"similar_to"`
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func similarToJSON(ids []string) string {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// InsertReport writes one report row. A single INSERT statement, so the
// write is atomic: the row either lands complete or not at all.
func (s *Store) InsertReport(ctx context.Context, rep report.StoredReport) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO reports
		(id, created_at, type, message, platform, app_version, status, fingerprint,
		 summary, category, severity, developer_action, confidence, similar_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID,
		rep.CreatedAt.UTC().Format(time.RFC3339Nano),
		rep.Type,
		rep.Message,
		rep.Platform,
		rep.AppVersion,
		rep.Status,
		rep.Fingerprint,
		nullString(rep.Summary),
		nullString(rep.Category),
		nullString(rep.Severity),
		nullString(rep.DeveloperAction),
		nullFloat(rep.Confidence),
		similarToJSON(rep.SimilarTo),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// RecentByType returns the most recent stored reports of one type, newest
// first, bounded by limit. The similarity matcher scans this window.
func (s *Store) RecentByType(ctx context.Context, reportType string, limit int) ([]report.StoredReport, error) {
	var rows []reportRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM reports WHERE type = ? ORDER BY created_at DESC LIMIT ?`,
		reportType, limit)
	if err != nil {
		return nil, fmt.Errorf("scan reports by type: %w", err)
	}
	return fromRows(rows)
}

// RecentReports returns the newest reports across all types, for the
// listing accessor.
func (s *Store) RecentReports(ctx context.Context, limit int) ([]report.StoredReport, error) {
	var rows []reportRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM reports ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return fromRows(rows)
}

// GetReport returns one stored report by identifier.
func (s *Store) GetReport(ctx context.Context, id string) (report.StoredReport, error) {
	var row reportRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM reports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return report.StoredReport{}, report.NewNotFoundError("report not found")
	}
	if err != nil {
		return report.StoredReport{}, fmt.Errorf("get report: %w", err)
	}
	return fromRow(row)
}

func fromRows(rows []reportRow) ([]report.StoredReport, error) {
	out := make([]report.StoredReport, 0, len(rows))
	for _, row := range rows {
		rep, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}

func fromRow(row reportRow) (report.StoredReport, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return report.StoredReport{}, fmt.Errorf("parse created_at: %w", err)
	}
	rep := report.StoredReport{
		ID:          row.ID,
		CreatedAt:   createdAt,
		Type:        row.Type,
		Message:     row.Message,
		Platform:    row.Platform,
		AppVersion:  row.AppVersion,
		Status:      row.Status,
		Fingerprint: row.Fingerprint,
		SimilarTo:   []string{},
	}
	if row.Summary.Valid {
		rep.Summary = &row.Summary.String
	}
	if row.Category.Valid {
		rep.Category = &row.Category.String
	}
	if row.Severity.Valid {
		rep.Severity = &row.Severity.String
	}
	if row.DeveloperAction.Valid {
		rep.DeveloperAction = &row.DeveloperAction.String
	}
	if row.Confidence.Valid {
		rep.Confidence = &row.Confidence.Float64
	}
	_ = json.Unmarshal([]byte(row.SimilarTo), &rep.SimilarTo)
	return rep, nil
}

// Ensure Store satisfies the pipeline's persistence surface at compile time.
var _ report.Store = (*Store)(nil)
