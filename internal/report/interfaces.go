package report

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"social_metrics/internal/domain"
)

type ProfileStore interface {
	ListByCampaign(ctx context.Context, campaignID string) ([]domain.SocialProfile, error)
}

type MetricStore interface {
	// ListRange returns all metric rows for the campaign's profiles with
	// metric_date in [start, end], ordered by profile then date.
	ListRange(ctx context.Context, campaignID string, start, end time.Time) ([]domain.DailyMetric, error)
}

type PostStore interface {
	// TopPosts returns the highest-engagement posts across the profiles in
	// [start, end), ties broken by earliest published_at.
	TopPosts(ctx context.Context, profileIDs []string, start, end time.Time, limit int) ([]domain.Post, error)
}

type JobStore interface {
	// FailedProfileIDs lists profiles with at least one failed job in the
	// period.
	FailedProfileIDs(ctx context.Context, campaignID string, start, end time.Time) ([]string, error)
}

type SectionStore interface {
	// Replace atomically swaps the stored section set for a campaign
	// period; reports are regenerated wholesale, never patched.
	Replace(ctx context.Context, campaignID string, period domain.ReportPeriod, sections []domain.ReportSection) error
}
