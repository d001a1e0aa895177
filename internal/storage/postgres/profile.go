package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type ProfileStore struct {
	db *sqlx.DB
}

func NewProfileStore(db *sqlx.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

const profileColumns = `
	id, campaign_id, platform, name, username, profile_url, is_active,
	monitoring_enabled, consecutive_failures, last_successful_extraction,
	last_failed_extraction, created_at, updated_at`

func (s *ProfileStore) Get(ctx context.Context, id string) (*domain.SocialProfile, error) {
	var profile domain.SocialProfile
	query := `SELECT` + profileColumns + ` FROM social_profiles WHERE id = $1`

	err := s.db.GetContext(ctx, &profile, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %s: not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *ProfileStore) ListByCampaign(ctx context.Context, campaignID string) ([]domain.SocialProfile, error) {
	var profiles []domain.SocialProfile
	query := `SELECT` + profileColumns + ` FROM social_profiles WHERE campaign_id = $1 ORDER BY platform, username`

	if err := s.db.SelectContext(ctx, &profiles, query, campaignID); err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *ProfileStore) ListMonitored(ctx context.Context, campaignID string) ([]domain.SocialProfile, error) {
	var profiles []domain.SocialProfile
	query := `SELECT` + profileColumns + `
		FROM social_profiles
		WHERE campaign_id = $1 AND is_active AND monitoring_enabled
		ORDER BY platform, username`

	if err := s.db.SelectContext(ctx, &profiles, query, campaignID); err != nil {
		return nil, err
	}
	return profiles, nil
}

// RecordSuccess stamps the last successful extraction and resets the
// consecutive-failure counter.
func (s *ProfileStore) RecordSuccess(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE social_profiles
		SET last_successful_extraction = $2,
		    consecutive_failures = 0,
		    updated_at = NOW()
		WHERE id = $1`

	_, err := s.db.ExecContext(ctx, query, id, at)
	return err
}

// RecordFailure stamps the failure and returns the incremented
// consecutive-failure counter.
func (s *ProfileStore) RecordFailure(ctx context.Context, id string, at time.Time) (int, error) {
	query := `
		UPDATE social_profiles
		SET last_failed_extraction = $2,
		    consecutive_failures = consecutive_failures + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING consecutive_failures`

	var failures int
	err := s.db.QueryRowContext(ctx, query, id, at).Scan(&failures)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("profile %s: not found", id)
	}
	if err != nil {
		return 0, err
	}
	return failures, nil
}

// Deactivate turns monitoring off; returns false when it was already off,
// so callers can notify exactly once.
func (s *ProfileStore) Deactivate(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE social_profiles
		SET monitoring_enabled = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND monitoring_enabled
		RETURNING id`

	var updated string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
