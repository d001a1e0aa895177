package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type CommentStore struct {
	db *sqlx.DB
}

func NewCommentStore(db *sqlx.DB) *CommentStore {
	return &CommentStore{db: db}
}

// Insert stores the comment once per (profile, platform_comment_id). Returns
// false when the row already existed.
func (s *CommentStore) Insert(ctx context.Context, comment *domain.Comment) (bool, error) {
	query := `
		INSERT INTO comments (
			id, profile_id, platform_comment_id, platform_post_id, content,
			likes_count, sentiment_score, published_at, extracted_at
		) VALUES (
			:id, :profile_id, :platform_comment_id, :platform_post_id, :content,
			:likes_count, :sentiment_score, :published_at, :extracted_at
		)
		ON CONFLICT (profile_id, platform_comment_id) DO NOTHING`

	res, err := sqlx.NamedExecContext(ctx, GetExecutor(ctx, s.db), query, comment)
	if err != nil {
		return false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return inserted > 0, nil
}
