package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type CampaignStore struct {
	db *sqlx.DB
}

func NewCampaignStore(db *sqlx.DB) *CampaignStore {
	return &CampaignStore{db: db}
}

func (s *CampaignStore) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	var campaign domain.Campaign
	query := `
		SELECT id, name, slug, timezone, monitoring_frequency, max_posts_per_profile,
		       extract_comments, sentiment_analysis, status, created_at, updated_at
		FROM campaigns
		WHERE id = $1`

	err := s.db.GetContext(ctx, &campaign, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("campaign %s: not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (s *CampaignStore) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	var campaigns []domain.Campaign
	query := `
		SELECT id, name, slug, timezone, monitoring_frequency, max_posts_per_profile,
		       extract_comments, sentiment_analysis, status, created_at, updated_at
		FROM campaigns
		WHERE status = 'active'
		ORDER BY created_at`

	if err := s.db.SelectContext(ctx, &campaigns, query); err != nil {
		return nil, err
	}
	return campaigns, nil
}
