package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type JobStore struct {
	db *sqlx.DB
}

func NewJobStore(db *sqlx.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) Create(ctx context.Context, job *domain.ExtractionJob) error {
	query := `
		INSERT INTO extraction_jobs (
			id, profile_id, campaign_id, kind, state, attempts, provider_run_id,
			enqueued_at, started_at, completed_at, error_kind, error_message,
			extracted_posts, extracted_comments, skipped_records
		) VALUES (
			:id, :profile_id, :campaign_id, :kind, :state, :attempts, :provider_run_id,
			:enqueued_at, :started_at, :completed_at, :error_kind, :error_message,
			:extracted_posts, :extracted_comments, :skipped_records
		)`

	_, err := s.db.NamedExecContext(ctx, query, job)
	return err
}

func (s *JobStore) Update(ctx context.Context, job *domain.ExtractionJob) error {
	query := `
		UPDATE extraction_jobs SET
			state = :state,
			attempts = :attempts,
			provider_run_id = :provider_run_id,
			started_at = :started_at,
			completed_at = :completed_at,
			error_kind = :error_kind,
			error_message = :error_message,
			extracted_posts = :extracted_posts,
			extracted_comments = :extracted_comments,
			skipped_records = :skipped_records
		WHERE id = :id`

	_, err := s.db.NamedExecContext(ctx, query, job)
	return err
}

// ListPending returns all pending jobs in enqueue order. The scheduler uses
// it at startup to rebuild its in-memory queue.
func (s *JobStore) ListPending(ctx context.Context) ([]domain.ExtractionJob, error) {
	query := `
		SELECT id, profile_id, campaign_id, kind, state, attempts, provider_run_id,
		       enqueued_at, started_at, completed_at, error_kind, error_message,
		       extracted_posts, extracted_comments, skipped_records
		FROM extraction_jobs
		WHERE state = 'pending'
		ORDER BY enqueued_at`

	var jobs []domain.ExtractionJob
	if err := s.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, err
	}
	return jobs, nil
}

// DeleteOlderThan removes terminal jobs completed before the cutoff.
func (s *JobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM extraction_jobs
		WHERE completed_at IS NOT NULL AND completed_at < $1`

	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FailedProfileIDs lists profiles with at least one failed job completed in
// [start, end].
func (s *JobStore) FailedProfileIDs(ctx context.Context, campaignID string, start, end time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT profile_id
		FROM extraction_jobs
		WHERE campaign_id = $1
		  AND state = 'failed'
		  AND completed_at >= $2
		  AND completed_at < $3
		ORDER BY profile_id`

	var ids []string
	if err := s.db.SelectContext(ctx, &ids, query, campaignID, start, end.AddDate(0, 0, 1)); err != nil {
		return nil, err
	}
	return ids, nil
}
