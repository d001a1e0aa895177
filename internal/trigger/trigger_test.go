package trigger

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social_metrics/internal/domain"
)

type fakeCampaignStore struct {
	campaigns []domain.Campaign
	err       error
}

func (f *fakeCampaignStore) ListActive(_ context.Context) ([]domain.Campaign, error) {
	return f.campaigns, f.err
}

type fakeProfileStore struct {
	profiles map[string][]domain.SocialProfile
	err      error
}

func (f *fakeProfileStore) ListMonitored(_ context.Context, campaignID string) ([]domain.SocialProfile, error) {
	return f.profiles[campaignID], f.err
}

type fakeEnqueuer struct {
	enqueued []string
	failFor  map[string]error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, profileID string, kind domain.JobKind) (*domain.ExtractionJob, error) {
	if err := f.failFor[profileID]; err != nil {
		return nil, err
	}
	f.enqueued = append(f.enqueued, profileID)
	return &domain.ExtractionJob{ID: "job-" + profileID, ProfileID: profileID, Kind: kind}, nil
}

func newTestTrigger(campaigns *fakeCampaignStore, profiles *fakeProfileStore, enqueuer *fakeEnqueuer) *Trigger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	trig := New(campaigns, profiles, enqueuer, time.Minute, logger)
	trig.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	return trig
}

func TestScan_NeverExtractedIsDue(t *testing.T) {
	campaigns := &fakeCampaignStore{campaigns: []domain.Campaign{
		{ID: "camp-1", MonitoringFrequency: domain.FrequencyDaily},
	}}
	profiles := &fakeProfileStore{profiles: map[string][]domain.SocialProfile{
		"camp-1": {{ID: "profile-1", MonitoringEnabled: true}},
	}}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, profiles, enqueuer)
	trig.scan(context.Background())

	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, "profile-1", enqueuer.enqueued[0])
}

func TestScan_RecentExtractionNotDue(t *testing.T) {
	recent := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC) // 6h ago, daily interval

	campaigns := &fakeCampaignStore{campaigns: []domain.Campaign{
		{ID: "camp-1", MonitoringFrequency: domain.FrequencyDaily},
	}}
	profiles := &fakeProfileStore{profiles: map[string][]domain.SocialProfile{
		"camp-1": {{ID: "profile-1", MonitoringEnabled: true, LastSuccessfulExtraction: &recent}},
	}}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, profiles, enqueuer)
	trig.scan(context.Background())

	assert.Empty(t, enqueuer.enqueued)
}

func TestScan_IntervalElapsedIsDue(t *testing.T) {
	stale := time.Date(2026, 3, 9, 11, 0, 0, 0, time.UTC) // 25h ago

	campaigns := &fakeCampaignStore{campaigns: []domain.Campaign{
		{ID: "camp-1", MonitoringFrequency: domain.FrequencyDaily},
	}}
	profiles := &fakeProfileStore{profiles: map[string][]domain.SocialProfile{
		"camp-1": {{ID: "profile-1", MonitoringEnabled: true, LastSuccessfulExtraction: &stale}},
	}}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, profiles, enqueuer)
	trig.scan(context.Background())

	require.Len(t, enqueuer.enqueued, 1)
}

func TestScan_HourlyFrequencyUsesShorterInterval(t *testing.T) {
	twoHoursAgo := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

	campaigns := &fakeCampaignStore{campaigns: []domain.Campaign{
		{ID: "camp-1", MonitoringFrequency: domain.FrequencyHourly},
	}}
	profiles := &fakeProfileStore{profiles: map[string][]domain.SocialProfile{
		"camp-1": {{ID: "profile-1", MonitoringEnabled: true, LastSuccessfulExtraction: &twoHoursAgo}},
	}}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, profiles, enqueuer)
	trig.scan(context.Background())

	require.Len(t, enqueuer.enqueued, 1)
}

func TestScan_EnqueueErrorContinuesWithOthers(t *testing.T) {
	campaigns := &fakeCampaignStore{campaigns: []domain.Campaign{
		{ID: "camp-1", MonitoringFrequency: domain.FrequencyDaily},
	}}
	profiles := &fakeProfileStore{profiles: map[string][]domain.SocialProfile{
		"camp-1": {
			{ID: "profile-1", MonitoringEnabled: true},
			{ID: "profile-2", MonitoringEnabled: true},
		},
	}}
	enqueuer := &fakeEnqueuer{failFor: map[string]error{"profile-1": errors.New("queue full")}}

	trig := newTestTrigger(campaigns, profiles, enqueuer)
	trig.scan(context.Background())

	require.Len(t, enqueuer.enqueued, 1)
	assert.Equal(t, "profile-2", enqueuer.enqueued[0])
}

func TestScan_CampaignStoreErrorSkipsScan(t *testing.T) {
	campaigns := &fakeCampaignStore{err: errors.New("db down")}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, &fakeProfileStore{}, enqueuer)
	trig.scan(context.Background())

	assert.Empty(t, enqueuer.enqueued)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	campaigns := &fakeCampaignStore{}
	enqueuer := &fakeEnqueuer{}

	trig := newTestTrigger(campaigns, &fakeProfileStore{}, enqueuer)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- trig.Start(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("trigger did not stop on context cancel")
	}
}
