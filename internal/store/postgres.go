package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayush/estate-market/internal/models"
)

// SubmissionLedger records identity-document submissions in PostgreSQL.
// Rows are append-only; reviewers flip status out of band.
type SubmissionLedger struct {
	pool *pgxpool.Pool
}

func NewSubmissionLedger(pool *pgxpool.Pool) *SubmissionLedger {
	return &SubmissionLedger{pool: pool}
}

// Migrate creates the document_submissions table if it doesn't exist.
func (s *SubmissionLedger) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS document_submissions (
			id           BIGSERIAL PRIMARY KEY,
			user_id      VARCHAR(24)  NOT NULL,
			kind         VARCHAR(16)  NOT NULL,
			number       VARCHAR(32)  NOT NULL,
			document_url TEXT         NOT NULL,
			status       VARCHAR(16)  NOT NULL DEFAULT 'pending',
			submitted_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS document_submissions_user_idx
			ON document_submissions (user_id, submitted_at DESC);
	`)
	return err
}

// Record appends one submission and fills in its id, status and timestamp.
func (s *SubmissionLedger) Record(ctx context.Context, sub *models.Submission) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO document_submissions (user_id, kind, number, document_url)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, status, submitted_at`,
		sub.UserID, sub.Kind, sub.Number, sub.DocumentURL,
	).Scan(&sub.ID, &sub.Status, &sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// ListByUser returns a user's submissions, newest first.
func (s *SubmissionLedger) ListByUser(ctx context.Context, userID string) ([]models.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, kind, number, document_url, status, submitted_at
		 FROM document_submissions WHERE user_id = $1
		 ORDER BY submitted_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	subs := []models.Submission{}
	for rows.Next() {
		var sub models.Submission
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Kind, &sub.Number, &sub.DocumentURL, &sub.Status, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteByUser drops the history of a deleted account.
func (s *SubmissionLedger) DeleteByUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM document_submissions WHERE user_id = $1`, userID)
	return err
}
