package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
)

// IngestOptions tunes one ingest call.
type IngestOptions struct {
	// AllowClosed permits late corrections to days past the closed horizon.
	AllowClosed bool
}

// Aggregator folds raw extraction results into per-(profile, day) metric
// rows. Ingestion is idempotent: records are deduplicated on insert and
// counters only move for records seen the first time. Updates to one
// (profile, day) key are serialized; different keys proceed in parallel.
type Aggregator struct {
	posts    PostStore
	comments CommentStore
	metrics  MetricStore
	tx       TxRunner
	logger   *slog.Logger

	closedHorizon time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	now func() time.Time
}

func New(posts PostStore, comments CommentStore, metrics MetricStore, tx TxRunner, logger *slog.Logger, cfg config.AggregatorConfig) *Aggregator {
	return &Aggregator{
		posts:         posts,
		comments:      comments,
		metrics:       metrics,
		tx:            tx,
		logger:        logger.With("component", "aggregator"),
		closedHorizon: time.Duration(cfg.ClosedHorizonDays) * 24 * time.Hour,
		locks:         make(map[string]*sync.Mutex),
		now:           time.Now,
	}
}

// Ingest applies one extraction result with default options. It satisfies
// the scheduler's Ingestor interface.
func (a *Aggregator) Ingest(ctx context.Context, prof *domain.SocialProfile, campaign *domain.Campaign, jobID string, result *domain.ExtractionResult) error {
	return a.IngestWithOptions(ctx, prof, campaign, jobID, result, IngestOptions{})
}

// IngestWithOptions groups the result's records by calendar day in the
// profile's timezone and folds each day bucket under that day's lock. The
// audience snapshot always lands on the observation day, so metrics-only
// pulls with zero records still refresh follower counts.
func (a *Aggregator) IngestWithOptions(ctx context.Context, prof *domain.SocialProfile, campaign *domain.Campaign, jobID string, result *domain.ExtractionResult, opts IngestOptions) error {
	loc := prof.Location(campaign.Timezone)

	type dayBucket struct {
		posts    []domain.RawRecord
		comments []commentTarget
		snapshot bool
	}
	buckets := make(map[time.Time]*dayBucket)

	bucketFor := func(day time.Time) *dayBucket {
		b, ok := buckets[day]
		if !ok {
			b = &dayBucket{}
			buckets[day] = b
		}
		return b
	}

	for i := range result.Records {
		rec := result.Records[i]
		switch rec.Kind {
		case domain.RecordKindPost:
			day := dayOf(rec.PublishedAt, loc)
			bucketFor(day).posts = append(bucketFor(day).posts, rec)
		case domain.RecordKindComment:
			day, err := a.commentDay(ctx, prof.ID, rec, loc)
			if err != nil {
				return err
			}
			bucketFor(day).comments = append(bucketFor(day).comments, commentTarget{record: rec})
		default:
			a.logger.Warn("dropping record with unknown kind",
				"profile_id", prof.ID,
				"platform_id", rec.PlatformID,
				"kind", rec.Kind,
			)
		}
	}

	observedAt := result.Snapshot.ObservedAt
	if observedAt.IsZero() {
		observedAt = a.now()
	}
	bucketFor(dayOf(observedAt, loc)).snapshot = true

	days := make([]time.Time, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, day := range days {
		b := buckets[day]

		if !opts.AllowClosed && a.dayClosed(day, loc) && !b.snapshot {
			a.logger.Warn("skipping update to closed day",
				"profile_id", prof.ID,
				"day", day.Format("2006-01-02"),
				"error", domain.ErrDayClosed,
			)
			continue
		}

		if err := a.foldDay(ctx, prof, jobID, day, b.posts, b.comments, b.snapshot, result.Snapshot); err != nil {
			return fmt.Errorf("fold day %s: %w", day.Format("2006-01-02"), err)
		}
	}

	return nil
}

type commentTarget struct {
	record domain.RawRecord
}

// commentDay resolves the day a comment's sentiment is attributed to: the
// parent post's published day when the post is known, else the comment's own.
func (a *Aggregator) commentDay(ctx context.Context, profileID string, rec domain.RawRecord, loc *time.Location) (time.Time, error) {
	parent, err := a.posts.GetByPlatformID(ctx, profileID, rec.ParentPostID)
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup parent post %s: %w", rec.ParentPostID, err)
	}
	if parent != nil {
		return dayOf(parent.PublishedAt, loc), nil
	}
	return dayOf(rec.PublishedAt, loc), nil
}

// foldDay applies one day bucket under the (profile, day) lock. The fold is
// multi-statement, so it runs as one transaction: a failure anywhere rolls
// the record inserts back with it, and a retry replays the same records with
// their dedup state intact.
func (a *Aggregator) foldDay(ctx context.Context, prof *domain.SocialProfile, jobID string, day time.Time, posts []domain.RawRecord, comments []commentTarget, applySnapshot bool, snapshot domain.ProfileSnapshot) error {
	unlock := a.lock(prof.ID, day)
	defer unlock()

	return a.tx.WithTransaction(ctx, func(ctx context.Context) error {
		return a.applyDay(ctx, prof, jobID, day, posts, comments, applySnapshot, snapshot)
	})
}

func (a *Aggregator) applyDay(ctx context.Context, prof *domain.SocialProfile, jobID string, day time.Time, posts []domain.RawRecord, comments []commentTarget, applySnapshot bool, snapshot domain.ProfileSnapshot) error {
	metric, err := a.metrics.Get(ctx, prof.ID, day)
	if err != nil {
		return fmt.Errorf("load metric: %w", err)
	}
	if metric == nil {
		metric = &domain.DailyMetric{
			ProfileID:  prof.ID,
			MetricDate: day,
		}
	}
	metric.JobID = &jobID

	extractedAt := a.now().UTC()

	for i := range posts {
		rec := posts[i]
		inserted, err := a.posts.Insert(ctx, &domain.Post{
			ID:             uuid.NewString(),
			ProfileID:      prof.ID,
			JobID:          &jobID,
			PlatformPostID: rec.PlatformID,
			Content:        rec.Content,
			ContentType:    rec.ContentType,
			LikesCount:     rec.LikesCount,
			CommentsCount:  rec.CommentsCount,
			SharesCount:    rec.SharesCount,
			ViewsCount:     rec.ViewsCount,
			SentimentScore: rec.SentimentScore,
			PublishedAt:    rec.PublishedAt,
			ExtractedAt:    extractedAt,
		})
		if err != nil {
			return fmt.Errorf("insert post %s: %w", rec.PlatformID, err)
		}
		if !inserted {
			continue
		}

		metric.PostsCount++
		switch rec.ContentType {
		case domain.ContentTypeVideo:
			metric.VideoPostsCount++
		case domain.ContentTypeImage, domain.ContentTypeCarousel:
			metric.ImagePostsCount++
		default:
			metric.TextPostsCount++
		}

		metric.TotalLikes += rec.LikesCount
		metric.TotalComments += rec.CommentsCount
		metric.TotalShares += rec.SharesCount
		metric.TotalViews += rec.ViewsCount

		if rec.SentimentScore != nil {
			applySentiment(metric, *rec.SentimentScore)
		}
	}

	for i := range comments {
		rec := comments[i].record
		inserted, err := a.comments.Insert(ctx, &domain.Comment{
			ID:                uuid.NewString(),
			ProfileID:         prof.ID,
			PlatformCommentID: rec.PlatformID,
			PlatformPostID:    rec.ParentPostID,
			Content:           rec.Content,
			LikesCount:        rec.LikesCount,
			SentimentScore:    rec.SentimentScore,
			PublishedAt:       rec.PublishedAt,
			ExtractedAt:       extractedAt,
		})
		if err != nil {
			return fmt.Errorf("insert comment %s: %w", rec.PlatformID, err)
		}
		if !inserted || rec.SentimentScore == nil {
			continue
		}

		applySentiment(metric, *rec.SentimentScore)
	}

	if applySnapshot {
		prev, err := a.metrics.Get(ctx, prof.ID, day.AddDate(0, 0, -1))
		if err != nil {
			return fmt.Errorf("load previous day metric: %w", err)
		}
		metric.FollowersCount = snapshot.FollowersCount
		metric.FollowingCount = snapshot.FollowingCount
		if prev != nil && prev.FollowersCount > 0 {
			metric.FollowersGrowth = snapshot.FollowersCount - prev.FollowersCount
		}
	}

	metric.RecalculateEngagementRate()

	top, err := a.posts.TopPostForDay(ctx, prof.ID, day, day.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("find top post: %w", err)
	}
	if top != nil {
		metric.TopPostID = &top.ID
		metric.TopPostEngagement = top.TotalEngagement()
	}

	if err := a.metrics.Upsert(ctx, metric); err != nil {
		return fmt.Errorf("upsert metric: %w", err)
	}

	return nil
}

// applySentiment buckets one score into the day's distribution and folds it
// into the running average.
func applySentiment(metric *domain.DailyMetric, score float64) {
	scored := metric.SentimentPositive + metric.SentimentNeutral + metric.SentimentNegative

	switch {
	case score > 0.2:
		metric.SentimentPositive++
	case score < -0.2:
		metric.SentimentNegative++
	default:
		metric.SentimentNeutral++
	}

	metric.SentimentAvg = (metric.SentimentAvg*float64(scored) + score) / float64(scored+1)
}

func (a *Aggregator) dayClosed(day time.Time, loc *time.Location) bool {
	if a.closedHorizon <= 0 {
		return false
	}
	cutoff := dayOf(a.now().In(loc), loc).Add(-a.closedHorizon)
	return day.Before(cutoff)
}

func (a *Aggregator) lock(profileID string, day time.Time) func() {
	key := profileID + "|" + day.Format("2006-01-02")

	a.mu.Lock()
	m, ok := a.locks[key]
	if !ok {
		m = &sync.Mutex{}
		a.locks[key] = m
	}
	a.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// dayOf truncates t to midnight of its calendar day in loc.
func dayOf(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
