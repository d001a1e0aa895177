//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"social_metrics/internal/domain"
	"social_metrics/testdata/utils"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", connStr)
	s.Require().NoError(err)
	s.db = db

	_, _, err = RunMigrations(db)
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM report_sections")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM daily_metrics")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM comments")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM posts")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM extraction_jobs")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM social_profiles")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM campaigns")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) createCampaign() string {
	id := uuid.NewString()
	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO campaigns (id, name, slug, timezone, monitoring_frequency)
		VALUES ($1, 'Test Campaign', $2, 'UTC', 'daily')`,
		id, "test-"+id[:8])
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) createProfile(campaignID string) string {
	id := uuid.NewString()
	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO social_profiles (id, campaign_id, platform, name, username)
		VALUES ($1, $2, 'instagram', 'Test Profile', $3)`,
		id, campaignID, "user-"+id[:8])
	s.Require().NoError(err)
	return id
}

func (s *PostgresIntegrationSuite) TestProfileStore_RecordFailure_Increments() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewProfileStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	failures, err := store.RecordFailure(s.ctx, profileID, now)
	s.NoError(err)
	s.Equal(1, failures)

	failures, err = store.RecordFailure(s.ctx, profileID, now)
	s.NoError(err)
	s.Equal(2, failures)

	prof, err := store.Get(s.ctx, profileID)
	s.NoError(err)
	s.Equal(2, prof.ConsecutiveFailures)
	s.NotNil(prof.LastFailedExtraction)
}

func (s *PostgresIntegrationSuite) TestProfileStore_RecordSuccess_ResetsFailures() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewProfileStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	_, err := store.RecordFailure(s.ctx, profileID, now)
	s.Require().NoError(err)

	err = store.RecordSuccess(s.ctx, profileID, now)
	s.NoError(err)

	prof, err := store.Get(s.ctx, profileID)
	s.NoError(err)
	s.Equal(0, prof.ConsecutiveFailures)
	s.NotNil(prof.LastSuccessfulExtraction)
}

func (s *PostgresIntegrationSuite) TestProfileStore_Deactivate_OnlyOnce() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewProfileStore(s.db)

	changed, err := store.Deactivate(s.ctx, profileID)
	s.NoError(err)
	s.True(changed)

	changed, err = store.Deactivate(s.ctx, profileID)
	s.NoError(err)
	s.False(changed)

	profiles, err := store.ListMonitored(s.ctx, campaignID)
	s.NoError(err)
	s.Empty(profiles)
}

func (s *PostgresIntegrationSuite) TestPostStore_Insert_Dedup() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewPostStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	post := &domain.Post{
		ID:             uuid.NewString(),
		ProfileID:      profileID,
		PlatformPostID: "post-1",
		Content:        "hello",
		ContentType:    domain.ContentTypeText,
		LikesCount:     10,
		PublishedAt:    now,
		ExtractedAt:    now,
	}

	inserted, err := store.Insert(s.ctx, post)
	s.NoError(err)
	s.True(inserted)

	dup := *post
	dup.ID = uuid.NewString()
	dup.LikesCount = 99

	inserted, err = store.Insert(s.ctx, &dup)
	s.NoError(err)
	s.False(inserted)

	stored, err := store.GetByPlatformID(s.ctx, profileID, "post-1")
	s.NoError(err)
	s.Require().NotNil(stored)
	s.Equal(10, stored.LikesCount)
}

func (s *PostgresIntegrationSuite) TestPostStore_TopPostForDay_TieBreak() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewPostStore(s.db)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	early := &domain.Post{
		ID: uuid.NewString(), ProfileID: profileID, PlatformPostID: "early",
		ContentType: domain.ContentTypeText, LikesCount: 50,
		PublishedAt: day.Add(9 * time.Hour), ExtractedAt: day,
	}
	late := &domain.Post{
		ID: uuid.NewString(), ProfileID: profileID, PlatformPostID: "late",
		ContentType: domain.ContentTypeText, LikesCount: 50,
		PublishedAt: day.Add(11 * time.Hour), ExtractedAt: day,
	}

	for _, p := range []*domain.Post{late, early} {
		_, err := store.Insert(s.ctx, p)
		s.Require().NoError(err)
	}

	top, err := store.TopPostForDay(s.ctx, profileID, day, day.AddDate(0, 0, 1))
	s.NoError(err)
	s.Require().NotNil(top)
	s.Equal("early", top.PlatformPostID)
}

func (s *PostgresIntegrationSuite) TestCommentStore_Insert_Dedup() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewCommentStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	comment := &domain.Comment{
		ID:                uuid.NewString(),
		ProfileID:         profileID,
		PlatformCommentID: "comment-1",
		PlatformPostID:    "post-1",
		Content:           "nice",
		PublishedAt:       now,
		ExtractedAt:       now,
	}

	inserted, err := store.Insert(s.ctx, comment)
	s.NoError(err)
	s.True(inserted)

	dup := *comment
	dup.ID = uuid.NewString()
	inserted, err = store.Insert(s.ctx, &dup)
	s.NoError(err)
	s.False(inserted)
}

func (s *PostgresIntegrationSuite) TestMetricStore_UpsertAndGet() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewMetricStore(s.db)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	metric := &domain.DailyMetric{
		ProfileID:      profileID,
		MetricDate:     day,
		FollowersCount: 1000,
		PostsCount:     3,
		TotalLikes:     120,
		EngagementRate: 0.12,
	}

	err := store.Upsert(s.ctx, metric)
	s.NoError(err)

	metric.TotalLikes = 150
	metric.TopPostID = utils.Ptr(uuid.NewString())
	err = store.Upsert(s.ctx, metric)
	s.NoError(err)

	stored, err := store.Get(s.ctx, profileID, day)
	s.NoError(err)
	s.Require().NotNil(stored)
	s.Equal(150, stored.TotalLikes)
	s.Equal(1000, stored.FollowersCount)
	s.NotNil(stored.TopPostID)

	missing, err := store.Get(s.ctx, profileID, day.AddDate(0, 0, 1))
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresIntegrationSuite) TestMetricStore_ListRange() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewMetricStore(s.db)

	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := store.Upsert(s.ctx, &domain.DailyMetric{
			ProfileID:  profileID,
			MetricDate: base.AddDate(0, 0, i),
			PostsCount: i,
		})
		s.Require().NoError(err)
	}

	metrics, err := store.ListRange(s.ctx, campaignID, base, base.AddDate(0, 0, 2))
	s.NoError(err)
	s.Len(metrics, 3)
	s.Equal(0, metrics[0].PostsCount)
	s.Equal(2, metrics[2].PostsCount)
}

func (s *PostgresIntegrationSuite) TestJobStore_Lifecycle() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewJobStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	job := &domain.ExtractionJob{
		ID:         uuid.NewString(),
		ProfileID:  profileID,
		CampaignID: campaignID,
		Kind:       domain.JobKindIncremental,
		State:      domain.JobStatePending,
		EnqueuedAt: now,
	}

	err := store.Create(s.ctx, job)
	s.NoError(err)

	job.State = domain.JobStateFailed
	job.Attempts = 3
	job.CompletedAt = utils.Ptr(now)
	job.ErrorKind = utils.Ptr("transient")
	err = store.Update(s.ctx, job)
	s.NoError(err)

	ids, err := store.FailedProfileIDs(s.ctx, campaignID, now.AddDate(0, 0, -1), now)
	s.NoError(err)
	s.Equal([]string{profileID}, ids)

	deleted, err := store.DeleteOlderThan(s.ctx, now.Add(time.Hour))
	s.NoError(err)
	s.Equal(int64(1), deleted)
}

func (s *PostgresIntegrationSuite) TestJobStore_ListPending_EnqueueOrder() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewJobStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	newJob := func(state domain.JobState, enqueuedAt time.Time) *domain.ExtractionJob {
		return &domain.ExtractionJob{
			ID:         uuid.NewString(),
			ProfileID:  profileID,
			CampaignID: campaignID,
			Kind:       domain.JobKindFull,
			State:      state,
			EnqueuedAt: enqueuedAt,
		}
	}

	second := newJob(domain.JobStatePending, now)
	first := newJob(domain.JobStatePending, now.Add(-time.Hour))
	done := newJob(domain.JobStateCompleted, now.Add(-2*time.Hour))
	for _, job := range []*domain.ExtractionJob{second, first, done} {
		s.Require().NoError(store.Create(s.ctx, job))
	}

	pending, err := store.ListPending(s.ctx)
	s.NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(first.ID, pending[0].ID)
	s.Equal(second.ID, pending[1].ID)
}

func (s *PostgresIntegrationSuite) TestSectionStore_Replace_Wholesale() {
	campaignID := s.createCampaign()
	store := NewSectionStore(s.db)

	period := domain.ReportPeriod{
		Start: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
	}
	now := time.Now().Truncate(time.Microsecond)

	newSection := func(sectionType domain.SectionType, orderIndex int, payload any) domain.ReportSection {
		return domain.ReportSection{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			Type:       sectionType,
			Title:      string(sectionType),
			OrderIndex: orderIndex,
			Payload:    payload,
			CreatedAt:  now,
		}
	}

	firstRun := []domain.ReportSection{
		newSection(domain.SectionSummary, 0, map[string]int{"total_posts": 6}),
		newSection(domain.SectionTopPosts, 1, map[string]string{"post_id": "p1"}),
	}
	s.Require().NoError(store.Replace(s.ctx, campaignID, period, firstRun))

	secondRun := []domain.ReportSection{
		newSection(domain.SectionSummary, 0, map[string]int{"total_posts": 9}),
	}
	s.Require().NoError(store.Replace(s.ctx, campaignID, period, secondRun))

	stored, err := store.ListForPeriod(s.ctx, campaignID, period)
	s.NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(secondRun[0].ID, stored[0].ID)
	s.JSONEq(`{"total_posts": 9}`, string(stored[0].Payload.(json.RawMessage)))

	// The first run's rows are gone entirely, not merged.
	gone, err := store.Get(s.ctx, firstRun[1].ID)
	s.NoError(err)
	s.Nil(gone)

	section, err := store.Get(s.ctx, secondRun[0].ID)
	s.NoError(err)
	s.Require().NotNil(section)
	s.Equal(domain.SectionSummary, section.Type)
}

func (s *PostgresIntegrationSuite) TestTransactionManager_RollbackDiscardsInsert() {
	campaignID := s.createCampaign()
	profileID := s.createProfile(campaignID)
	store := NewPostStore(s.db)
	tm := NewTransactionManager(s.db)
	now := time.Now().Truncate(time.Microsecond)

	post := &domain.Post{
		ID:             uuid.NewString(),
		ProfileID:      profileID,
		PlatformPostID: "post-tx",
		ContentType:    domain.ContentTypeText,
		LikesCount:     10,
		PublishedAt:    now,
		ExtractedAt:    now,
	}

	boom := errors.New("downstream failed")
	err := tm.WithTransaction(s.ctx, func(txCtx context.Context) error {
		inserted, err := store.Insert(txCtx, post)
		s.Require().NoError(err)
		s.Require().True(inserted)
		return boom
	})
	s.ErrorIs(err, boom)

	stored, err := store.GetByPlatformID(s.ctx, profileID, "post-tx")
	s.NoError(err)
	s.Nil(stored)

	// Dedup state rolled back with the row, so a retry inserts cleanly.
	inserted, err := store.Insert(s.ctx, post)
	s.NoError(err)
	s.True(inserted)
}
