package reports

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	category        TEXT NOT NULL DEFAULT '',
	content         TEXT NOT NULL,
	user_prompt     TEXT NOT NULL DEFAULT '',
	comments        TEXT NOT NULL DEFAULT '',
	email           TEXT NOT NULL DEFAULT '',
	content_summary TEXT NOT NULL DEFAULT '',
	prompt_summary  TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_user ON reports (user_id);
`

// SQLiteStore persists reports in a local SQLite database. It can
// share a database file with the usage store; each owns its own table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open report store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize report store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, r *Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports
		(id, user_id, category, content, user_prompt, comments, email, content_summary, prompt_summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Category, r.Content, r.UserPrompt, r.Comments, r.Email,
		r.ContentSummary, r.PromptSummary, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reports WHERE user_id = ?`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
