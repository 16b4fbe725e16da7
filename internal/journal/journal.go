// Package journal keeps a local sqlite audit trail of session history
// entries. It is a convenience mirror: the remote store owns review truth,
// and the journal is only read back when the remote history fetch fails or
// when the reviewer dumps it from the CLI.
package journal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // Registers the sqlite driver

	"github.com/conorfennell/qvet/internal/domain"
)

// DB wraps the sqlite connection holding the journal.
type DB struct {
	conn *sql.DB
}

// Open creates the journal database at dsn and ensures the schema exists.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to journal database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to apply journal schema: %w", err)
	}
	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Append records one history entry for a reviewer.
func (db *DB) Append(ctx context.Context, reviewerID int, entry domain.HistoryEntry) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO history (reviewer_id, review_id, question_id, question, action, modified)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		reviewerID,
		entry.ReviewID,
		entry.QuestionID,
		entry.Question,
		string(entry.Action),
		entry.Modified,
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry for reviewer %d: %w", reviewerID, err)
	}
	return nil
}

// Recent returns up to limit of the reviewer's journaled entries,
// most-recent-first.
func (db *DB) Recent(ctx context.Context, reviewerID, limit int) ([]domain.HistoryEntry, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT review_id, question_id, question, action, modified
		FROM history WHERE reviewer_id = ?
		ORDER BY id DESC LIMIT ?
	`, reviewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal for reviewer %d: %w", reviewerID, err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var action string
		if err := rows.Scan(&e.ReviewID, &e.QuestionID, &e.Question, &action, &e.Modified); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Action = domain.Action(action)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal rows: %w", err)
	}
	return entries, nil
}
