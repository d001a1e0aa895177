package aggregator

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"social_metrics/internal/domain"
)

type PostStore interface {
	// Insert stores a new post, returning false on a dedup conflict.
	// Stored posts are immutable.
	Insert(ctx context.Context, post *domain.Post) (bool, error)
	GetByPlatformID(ctx context.Context, profileID, platformPostID string) (*domain.Post, error)
	// TopPostForDay returns the post with the highest total engagement in
	// [start, end), ties broken by earliest published_at. Nil when none.
	TopPostForDay(ctx context.Context, profileID string, start, end time.Time) (*domain.Post, error)
}

// TxRunner spans one transaction over a fold so the record inserts and the
// metric upsert commit or roll back together.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CommentStore interface {
	// Insert stores a new comment, returning false on a dedup conflict.
	Insert(ctx context.Context, comment *domain.Comment) (bool, error)
}

type MetricStore interface {
	// Get returns the metric row for (profile, day), or nil when absent.
	Get(ctx context.Context, profileID string, day time.Time) (*domain.DailyMetric, error)
	Upsert(ctx context.Context, metric *domain.DailyMetric) error
}
