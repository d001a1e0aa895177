package scheduler

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"social_metrics/internal/domain"
	"social_metrics/internal/provider"
	"social_metrics/internal/ratelimit"
)

type ProfileStore interface {
	Get(ctx context.Context, id string) (*domain.SocialProfile, error)
	ListMonitored(ctx context.Context, campaignID string) ([]domain.SocialProfile, error)
	RecordSuccess(ctx context.Context, id string, at time.Time) error
	// RecordFailure increments and returns the consecutive-failure counter.
	RecordFailure(ctx context.Context, id string, at time.Time) (int, error)
	// Deactivate disables monitoring; returns false when already disabled.
	Deactivate(ctx context.Context, id string) (bool, error)
}

type CampaignStore interface {
	Get(ctx context.Context, id string) (*domain.Campaign, error)
}

type JobStore interface {
	Create(ctx context.Context, job *domain.ExtractionJob) error
	Update(ctx context.Context, job *domain.ExtractionJob) error
	// ListPending returns persisted pending jobs in enqueue order, for
	// requeueing after a restart.
	ListPending(ctx context.Context) ([]domain.ExtractionJob, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type Cache interface {
	Get(ctx context.Context, profileID, windowKey string) (*domain.ExtractionResult, bool)
	Put(ctx context.Context, profileID, windowKey string, result *domain.ExtractionResult, ttl time.Duration)
}

type Limiter interface {
	Acquire(ctx context.Context, key string) (*ratelimit.Permit, error)
	Release(permit *ratelimit.Permit)
}

type AdapterRegistry interface {
	Lookup(platform domain.Platform) (provider.Adapter, error)
}

type Ingestor interface {
	Ingest(ctx context.Context, profile *domain.SocialProfile, campaign *domain.Campaign, jobID string, result *domain.ExtractionResult) error
}

type Notifier interface {
	ProfileDeactivated(ctx context.Context, profileID, reason string) error
	JobStateChanged(ctx context.Context, jobID string, state domain.JobState) error
}
