package usage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_counters (
	user_id TEXT NOT NULL,
	counter TEXT NOT NULL,
	day     TEXT NOT NULL,
	count   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, counter, day)
);
`

// SQLiteStore persists counters in a local SQLite database. The
// conditional upsert makes admission atomic without an explicit
// transaction.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize usage store: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) IncrementIfBelow(ctx context.Context, userID, counter, day string, limit int) (bool, int, error) {
	if limit <= 0 {
		count, err := s.Count(ctx, userID, counter, day)
		return false, count, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_counters (user_id, counter, day, count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (user_id, counter, day)
		DO UPDATE SET count = count + 1 WHERE count < ?`,
		userID, counter, day, limit)
	if err != nil {
		return false, 0, fmt.Errorf("failed to increment counter: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read increment result: %w", err)
	}

	count, err := s.Count(ctx, userID, counter, day)
	if err != nil {
		return false, 0, err
	}
	return affected > 0, count, nil
}

func (s *SQLiteStore) Count(ctx context.Context, userID, counter, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM usage_counters WHERE user_id = ? AND counter = ? AND day = ?`,
		userID, counter, day).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) PurgeBefore(ctx context.Context, day string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM usage_counters WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("failed to purge counters: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
