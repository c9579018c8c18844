package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ericfisherdev/leaguedash/internal/domain/model"
	"github.com/ericfisherdev/leaguedash/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.AttemptStore = (*AttemptRepo)(nil)

// AttemptRepo is the SQLite implementation of the AttemptStore port. Rows
// are insert-only; nothing in the codebase updates or deletes them.
type AttemptRepo struct {
	db *DB
}

// NewAttemptRepo creates a new AttemptRepo.
func NewAttemptRepo(db *DB) *AttemptRepo {
	return &AttemptRepo{db: db}
}

// Append durably records a finished refresh attempt.
func (r *AttemptRepo) Append(ctx context.Context, attempt model.RefreshAttempt) error {
	const query = `INSERT INTO refresh_attempts (id, started_at, finished_at, outcome, error_detail, validation_retries)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.db.Writer.ExecContext(ctx, query,
		attempt.ID.String(),
		formatTime(attempt.StartedAt),
		formatTime(attempt.FinishedAt),
		string(attempt.Outcome),
		attempt.ErrorDetail,
		attempt.ValidationRetries,
	)
	if err != nil {
		return fmt.Errorf("append attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// ListRecent returns up to limit attempts, newest first.
func (r *AttemptRepo) ListRecent(ctx context.Context, limit int) ([]model.RefreshAttempt, error) {
	const query = `SELECT id, started_at, finished_at, outcome, error_detail, validation_retries
		FROM refresh_attempts ORDER BY started_at DESC LIMIT ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []model.RefreshAttempt
	for rows.Next() {
		var (
			attempt             model.RefreshAttempt
			id, started, finish string
			outcome             string
		)
		if err := rows.Scan(&id, &started, &finish, &outcome, &attempt.ErrorDetail, &attempt.ValidationRetries); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}

		attempt.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
		}
		attempt.StartedAt, err = parseTime(started)
		if err != nil {
			return nil, fmt.Errorf("parse started_at for attempt %q: %w", id, err)
		}
		attempt.FinishedAt, err = parseTime(finish)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at for attempt %q: %w", id, err)
		}
		attempt.Outcome = model.Outcome(outcome)

		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}

	return attempts, nil
}
