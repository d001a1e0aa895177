package trigger

import (
	"context"
	"log/slog"
	"time"

	"social_metrics/internal/domain"
)

// Enqueuer accepts extraction work for a profile.
type Enqueuer interface {
	Enqueue(ctx context.Context, profileID string, kind domain.JobKind) (*domain.ExtractionJob, error)
}

type CampaignStore interface {
	ListActive(ctx context.Context) ([]domain.Campaign, error)
}

type ProfileStore interface {
	ListMonitored(ctx context.Context, campaignID string) ([]domain.SocialProfile, error)
}

// Trigger periodically scans monitored profiles and enqueues incremental
// extraction jobs for those whose monitoring interval has elapsed. The scan
// is a pure reader; all job bookkeeping stays in the scheduler.
type Trigger struct {
	campaigns CampaignStore
	profiles  ProfileStore
	enqueuer  Enqueuer
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func New(campaigns CampaignStore, profiles ProfileStore, enqueuer Enqueuer, interval time.Duration, logger *slog.Logger) *Trigger {
	return &Trigger{
		campaigns: campaigns,
		profiles:  profiles,
		enqueuer:  enqueuer,
		interval:  interval,
		logger:    logger.With("component", "trigger"),
		now:       time.Now,
	}
}

func (t *Trigger) Start(ctx context.Context) error {
	t.logger.Info("trigger started", "scan_interval", t.interval)

	t.scan(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("trigger stopped")
			return ctx.Err()
		case <-ticker.C:
			t.scan(ctx)
		}
	}
}

func (t *Trigger) scan(ctx context.Context) {
	scanCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	campaigns, err := t.campaigns.ListActive(scanCtx)
	if err != nil {
		t.logger.Error("list active campaigns", "error", err)
		return
	}

	var enqueued int
	for _, campaign := range campaigns {
		profiles, err := t.profiles.ListMonitored(scanCtx, campaign.ID)
		if err != nil {
			t.logger.Error("list monitored profiles", "campaign_id", campaign.ID, "error", err)
			continue
		}

		for _, p := range profiles {
			if !t.due(&p, &campaign) {
				continue
			}
			if _, err := t.enqueuer.Enqueue(scanCtx, p.ID, domain.JobKindIncremental); err != nil {
				t.logger.Error("enqueue job", "profile_id", p.ID, "error", err)
				continue
			}
			enqueued++
		}
	}

	if enqueued > 0 {
		t.logger.Info("scan complete", "jobs_enqueued", enqueued)
	}
}

// due reports whether the profile's monitoring interval has elapsed since
// its last successful extraction. A profile never extracted is always due.
func (t *Trigger) due(p *domain.SocialProfile, campaign *domain.Campaign) bool {
	if p.LastSuccessfulExtraction == nil {
		return true
	}
	return t.now().Sub(*p.LastSuccessfulExtraction) >= campaign.MonitoringFrequency.Interval()
}
