package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/deskbridge/deskbridge/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Repository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		anchor TEXT PRIMARY KEY,
		channel_id TEXT NOT NULL,
		outcome TEXT NOT NULL,
		content_length INTEGER NOT NULL,
		paragraphs INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished_at);

	CREATE TABLE IF NOT EXISTS processed_posts (
		post_id TEXT PRIMARY KEY,
		processed_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_processed_posts_at ON processed_posts(processed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveSession archives one finished session, replacing any prior record for
// the same anchor.
func (s *SQLiteStore) SaveSession(ctx context.Context, rec domain.SessionRecord) error {
	query := `
		INSERT INTO sessions (anchor, channel_id, outcome, content_length, paragraphs, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(anchor) DO UPDATE SET
			outcome = excluded.outcome,
			content_length = excluded.content_length,
			paragraphs = excluded.paragraphs,
			finished_at = excluded.finished_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.Anchor, rec.ChannelID, string(rec.Outcome), rec.ContentLength, rec.Paragraphs,
		rec.StartedAt.Unix(), rec.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session %s: %w", rec.Anchor, err)
	}
	return nil
}

// RecentSessions returns the latest finished sessions, newest first.
func (s *SQLiteStore) RecentSessions(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	query := `
		SELECT anchor, channel_id, outcome, content_length, paragraphs, started_at, finished_at
		FROM sessions ORDER BY finished_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var outcome string
		var startedAt, finishedAt int64
		if err := rows.Scan(&rec.Anchor, &rec.ChannelID, &outcome,
			&rec.ContentLength, &rec.Paragraphs, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		rec.Outcome = domain.SessionOutcome(outcome)
		rec.StartedAt = time.Unix(startedAt, 0)
		rec.FinishedAt = time.Unix(finishedAt, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session rows: %w", err)
	}
	return out, nil
}

// MarkPostProcessed durably records a handled post ID.
func (s *SQLiteStore) MarkPostProcessed(ctx context.Context, postID string, processedAt time.Time) error {
	query := `INSERT OR IGNORE INTO processed_posts (post_id, processed_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, postID, processedAt.Unix()); err != nil {
		return fmt.Errorf("mark post %s processed: %w", postID, err)
	}
	return nil
}

// LoadProcessedPosts returns post IDs processed after the cutoff.
func (s *SQLiteStore) LoadProcessedPosts(ctx context.Context, since time.Time) ([]string, error) {
	query := `SELECT post_id FROM processed_posts WHERE processed_at > ? ORDER BY processed_at ASC`

	rows, err := s.db.QueryContext(ctx, query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query processed posts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan processed post row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed post rows: %w", err)
	}
	return ids, nil
}

// CleanupProcessedPosts deletes rows older than the cutoff and returns how
// many were removed.
func (s *SQLiteStore) CleanupProcessedPosts(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM processed_posts WHERE processed_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup processed posts: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count cleaned rows: %w", err)
	}
	return n, nil
}
