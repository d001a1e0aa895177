package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social_metrics/internal/domain"
)

type PostStore struct {
	db *sqlx.DB
}

func NewPostStore(db *sqlx.DB) *PostStore {
	return &PostStore{db: db}
}

const postColumns = `
	id, profile_id, job_id, platform_post_id, content, content_type,
	likes_count, comments_count, shares_count, views_count, sentiment_score,
	published_at, extracted_at`

// Insert stores the post once per (profile, platform_post_id). Returns false
// when the row already existed; existing rows are never modified.
func (s *PostStore) Insert(ctx context.Context, post *domain.Post) (bool, error) {
	query := `
		INSERT INTO posts (
			id, profile_id, job_id, platform_post_id, content, content_type,
			likes_count, comments_count, shares_count, views_count, sentiment_score,
			published_at, extracted_at
		) VALUES (
			:id, :profile_id, :job_id, :platform_post_id, :content, :content_type,
			:likes_count, :comments_count, :shares_count, :views_count, :sentiment_score,
			:published_at, :extracted_at
		)
		ON CONFLICT (profile_id, platform_post_id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, post)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}

func (s *PostStore) GetByPlatformID(ctx context.Context, profileID, platformPostID string) (*domain.Post, error) {
	var post domain.Post
	query := `SELECT` + postColumns + ` FROM posts WHERE profile_id = $1 AND platform_post_id = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &post, query, profileID, platformPostID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// TopPostForDay returns the highest-engagement post published in
// [start, end), ties broken by earliest publication. Nil when the day has
// no posts.
func (s *PostStore) TopPostForDay(ctx context.Context, profileID string, start, end time.Time) (*domain.Post, error) {
	var post domain.Post
	query := `SELECT` + postColumns + `
		FROM posts
		WHERE profile_id = $1 AND published_at >= $2 AND published_at < $3
		ORDER BY likes_count + comments_count + shares_count DESC, published_at ASC
		LIMIT 1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &post, query, profileID, start, end)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// TopPosts returns the highest-engagement posts across the profiles in
// [start, end), ties broken by earliest publication.
func (s *PostStore) TopPosts(ctx context.Context, profileIDs []string, start, end time.Time, limit int) ([]domain.Post, error) {
	if len(profileIDs) == 0 {
		return nil, nil
	}

	query := `SELECT` + postColumns + `
		FROM posts
		WHERE profile_id = ANY($1) AND published_at >= $2 AND published_at < $3
		ORDER BY likes_count + comments_count + shares_count DESC, published_at ASC
		LIMIT $4`

	var posts []domain.Post
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &posts, query, pq.Array(profileIDs), start, end, limit); err != nil {
		return nil, err
	}
	return posts, nil
}
