package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type MetricStore struct {
	db *sqlx.DB
}

func NewMetricStore(db *sqlx.DB) *MetricStore {
	return &MetricStore{db: db}
}

const metricColumns = `
	profile_id, metric_date, job_id, followers_count, following_count,
	followers_growth, posts_count, video_posts_count, image_posts_count,
	text_posts_count, total_likes, total_comments, total_shares, total_views,
	engagement_rate, sentiment_positive, sentiment_neutral, sentiment_negative,
	sentiment_avg, top_post_id, top_post_engagement, created_at, updated_at`

// Get returns the metric row for (profile, day), or nil when absent.
func (s *MetricStore) Get(ctx context.Context, profileID string, day time.Time) (*domain.DailyMetric, error) {
	var metric domain.DailyMetric
	query := `SELECT` + metricColumns + ` FROM daily_metrics WHERE profile_id = $1 AND metric_date = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &metric, query, profileID, day)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &metric, nil
}

func (s *MetricStore) Upsert(ctx context.Context, metric *domain.DailyMetric) error {
	query := `
		INSERT INTO daily_metrics (
			profile_id, metric_date, job_id, followers_count, following_count,
			followers_growth, posts_count, video_posts_count, image_posts_count,
			text_posts_count, total_likes, total_comments, total_shares, total_views,
			engagement_rate, sentiment_positive, sentiment_neutral, sentiment_negative,
			sentiment_avg, top_post_id, top_post_engagement, created_at, updated_at
		) VALUES (
			:profile_id, :metric_date, :job_id, :followers_count, :following_count,
			:followers_growth, :posts_count, :video_posts_count, :image_posts_count,
			:text_posts_count, :total_likes, :total_comments, :total_shares, :total_views,
			:engagement_rate, :sentiment_positive, :sentiment_neutral, :sentiment_negative,
			:sentiment_avg, :top_post_id, :top_post_engagement, NOW(), NOW()
		)
		ON CONFLICT (profile_id, metric_date) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			followers_count = EXCLUDED.followers_count,
			following_count = EXCLUDED.following_count,
			followers_growth = EXCLUDED.followers_growth,
			posts_count = EXCLUDED.posts_count,
			video_posts_count = EXCLUDED.video_posts_count,
			image_posts_count = EXCLUDED.image_posts_count,
			text_posts_count = EXCLUDED.text_posts_count,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			total_shares = EXCLUDED.total_shares,
			total_views = EXCLUDED.total_views,
			engagement_rate = EXCLUDED.engagement_rate,
			sentiment_positive = EXCLUDED.sentiment_positive,
			sentiment_neutral = EXCLUDED.sentiment_neutral,
			sentiment_negative = EXCLUDED.sentiment_negative,
			sentiment_avg = EXCLUDED.sentiment_avg,
			top_post_id = EXCLUDED.top_post_id,
			top_post_engagement = EXCLUDED.top_post_engagement,
			updated_at = NOW()`

	_, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, metric)
	return err
}

// ListRange returns all metric rows for the campaign's profiles with
// metric_date in [start, end], ordered by profile then date.
func (s *MetricStore) ListRange(ctx context.Context, campaignID string, start, end time.Time) ([]domain.DailyMetric, error) {
	query := `
		SELECT m.profile_id, m.metric_date, m.job_id, m.followers_count, m.following_count,
		       m.followers_growth, m.posts_count, m.video_posts_count, m.image_posts_count,
		       m.text_posts_count, m.total_likes, m.total_comments, m.total_shares, m.total_views,
		       m.engagement_rate, m.sentiment_positive, m.sentiment_neutral, m.sentiment_negative,
		       m.sentiment_avg, m.top_post_id, m.top_post_engagement, m.created_at, m.updated_at
		FROM daily_metrics m
		JOIN social_profiles p ON p.id = m.profile_id
		WHERE p.campaign_id = $1 AND m.metric_date >= $2 AND m.metric_date <= $3
		ORDER BY m.profile_id, m.metric_date`

	var metrics []domain.DailyMetric
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &metrics, query, campaignID, start, end); err != nil {
		return nil, err
	}
	return metrics, nil
}
