package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"inquiry-agent/internal/domain"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS rate_limits (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	identity   TEXT    NOT NULL,
	endpoint   TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_rate_limits_lookup ON rate_limits (identity, endpoint, created_at);

CREATE TABLE IF NOT EXISTS project_inquiries (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL,
	company       TEXT,
	project_type  TEXT,
	description   TEXT NOT NULL,
	budget_range  TEXT,
	timeline      TEXT,
	source        TEXT NOT NULL,
	ai_transcript TEXT NOT NULL,
	ai_extracted  TEXT,
	ai_summary    TEXT,
	status        TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);`

// SQLiteStore backs both the rate limiter and inquiries with a local SQLite
// database. It is meant for the development server.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("repository: sqlite dsn must not be empty")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CountSince(ctx context.Context, identity, endpoint string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rate_limits WHERE identity = ? AND endpoint = ? AND created_at >= ?`,
		identity, endpoint, since.UTC().UnixMilli(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("repository: CountSince: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Record(ctx context.Context, identity, endpoint string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limits (identity, endpoint, created_at) VALUES (?, ?, ?)`,
		identity, endpoint, at.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("repository: Record: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rate_limits WHERE created_at < ?`, cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("repository: DeleteBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("repository: DeleteBefore rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) InsertInquiry(ctx context.Context, rec domain.InquiryRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("repository: InsertInquiry: id is required")
	}
	var extracted sql.NullString
	if rec.AIExtracted != nil {
		raw, err := json.Marshal(rec.AIExtracted)
		if err != nil {
			return fmt.Errorf("repository: InsertInquiry marshal extracted: %w", err)
		}
		extracted = sql.NullString{String: string(raw), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO project_inquiries
	(id, name, email, company, project_type, description, budget_range, timeline,
	 source, ai_transcript, ai_extracted, ai_summary, status, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.Email, nullable(rec.Company), nullable(rec.ProjectType), rec.Description,
		nullable(rec.BudgetRange), nullable(rec.Timeline), string(rec.Source), rec.AITranscript,
		extracted, nullable(rec.AISummary), rec.Status, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository: InsertInquiry: %w", err)
	}
	return nil
}

// GetInquiry loads a lead by id.
func (s *SQLiteStore) GetInquiry(ctx context.Context, id string) (domain.InquiryRecord, error) {
	var (
		rec                                             domain.InquiryRecord
		company, projectType, budget, timeline, summary sql.NullString
		extracted                                       sql.NullString
		source                                          string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, email, company, project_type, description, budget_range, timeline,
       source, ai_transcript, ai_extracted, ai_summary, status, created_at
FROM project_inquiries WHERE id = ?`, id).Scan(
		&rec.ID, &rec.Name, &rec.Email, &company, &projectType, &rec.Description, &budget, &timeline,
		&source, &rec.AITranscript, &extracted, &summary, &rec.Status, &rec.CreatedAt,
	)
	if err != nil {
		return domain.InquiryRecord{}, fmt.Errorf("repository: GetInquiry: %w", err)
	}
	rec.Company = company.String
	rec.ProjectType = projectType.String
	rec.BudgetRange = budget.String
	rec.Timeline = timeline.String
	rec.AISummary = summary.String
	rec.Source = domain.Source(source)
	if extracted.Valid {
		var intent domain.ExtractedIntent
		if err := json.Unmarshal([]byte(extracted.String), &intent); err != nil {
			return domain.InquiryRecord{}, fmt.Errorf("repository: GetInquiry decode extracted: %w", err)
		}
		rec.AIExtracted = &intent
	}
	return rec, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
