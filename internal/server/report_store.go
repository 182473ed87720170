package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/geowander/citytour/internal/ingest"
)

// ReportStore logs one row per tour load so operators can see which
// source served each session and what the pipeline dropped.
type ReportStore struct {
	db *sql.DB
}

func NewReportStore(db *sql.DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveLoadReport appends a report to the log. It satisfies the
// loader's report persistence hook.
func (s *ReportStore) SaveLoadReport(ctx context.Context, report ingest.LoadReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encoding load report: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO load_reports (source, data, created_at) VALUES (?, jsonb(?), ?)`,
		report.Source, string(data), nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting load report: %w", err)
	}
	return nil
}

// StoredReport pairs a load report with its log row metadata.
type StoredReport struct {
	ID        int64             `json:"id"`
	CreatedAt string            `json:"createdAt"`
	Report    ingest.LoadReport `json:"report"`
}

// Recent returns the newest reports first. limit is clamped to 1..200
// with a default of 50.
func (s *ReportStore) Recent(ctx context.Context, limit int) ([]StoredReport, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, json(data) FROM load_reports ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredReport
	for rows.Next() {
		var sr StoredReport
		var data string
		if err := rows.Scan(&sr.ID, &sr.CreatedAt, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &sr.Report); err != nil {
			return nil, fmt.Errorf("decoding load report %d: %w", sr.ID, err)
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}
