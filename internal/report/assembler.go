package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"social_metrics/internal/config"
	"social_metrics/internal/domain"
)

// Options tunes one assembly call.
type Options struct {
	// TopPosts is how many posts the top-posts section carries; the
	// configured default applies when zero.
	TopPosts int
}

// Assembler builds the ordered report sections for a campaign period from
// aggregated metrics. It performs no rendering; each section payload is a
// self-contained structure for the external renderer. Sections with no
// underlying data are omitted, never emitted empty.
type Assembler struct {
	profiles ProfileStore
	metrics  MetricStore
	posts    PostStore
	jobs     JobStore
	sections SectionStore
	logger   *slog.Logger
	cfg      config.ReportConfig
}

func New(profiles ProfileStore, metrics MetricStore, posts PostStore, jobs JobStore, sections SectionStore, logger *slog.Logger, cfg config.ReportConfig) *Assembler {
	return &Assembler{
		profiles: profiles,
		metrics:  metrics,
		posts:    posts,
		jobs:     jobs,
		sections: sections,
		logger:   logger.With("component", "report_assembler"),
		cfg:      cfg,
	}
}

// Assemble produces the section sequence for a campaign over [start, end].
// Fixed order: summary, platform metrics, top posts, sentiment, growth.
// Fails with domain.ErrInsufficientData when the period has no metrics.
func (a *Assembler) Assemble(ctx context.Context, campaignID string, periodStart, periodEnd time.Time, opts Options) ([]domain.ReportSection, error) {
	period := domain.ReportPeriod{Start: periodStart, End: periodEnd}

	metrics, err := a.metrics.ListRange(ctx, campaignID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("load metrics: %w", err)
	}
	if len(metrics) == 0 {
		return nil, domain.ErrInsufficientData
	}

	profiles, err := a.profiles.ListByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	topN := opts.TopPosts
	if topN <= 0 {
		topN = a.cfg.TopPostsCount
	}

	byProfile := groupByProfile(metrics)

	var sections []domain.ReportSection
	add := func(sectionType domain.SectionType, title string, payload any) {
		sections = append(sections, domain.ReportSection{
			ID:         uuid.NewString(),
			CampaignID: campaignID,
			Type:       sectionType,
			Title:      title,
			OrderIndex: len(sections),
			Payload:    payload,
			CreatedAt:  time.Now().UTC(),
		})
	}

	summary, err := a.buildSummary(ctx, campaignID, period, profiles, byProfile)
	if err != nil {
		return nil, err
	}
	add(domain.SectionSummary, "Summary", summary)

	add(domain.SectionPlatformMetrics, "Metrics by Platform", buildPlatformMetrics(profiles, byProfile))

	topPosts, err := a.buildTopPosts(ctx, profiles, period, topN)
	if err != nil {
		return nil, err
	}
	if len(topPosts.Posts) > 0 {
		add(domain.SectionTopPosts, "Top Posts", topPosts)
	}

	if sentiment, ok := buildSentiment(byProfile); ok {
		add(domain.SectionSentiment, "Sentiment", sentiment)
	}

	growth, err := a.buildGrowth(ctx, campaignID, period, metrics)
	if err != nil {
		return nil, err
	}
	if growth != nil {
		add(domain.SectionGrowth, "Growth", *growth)
	}

	a.logger.Info("report assembled",
		"campaign_id", campaignID,
		"period_start", period.Start.Format("2006-01-02"),
		"period_end", period.End.Format("2006-01-02"),
		"sections", len(sections),
	)

	return sections, nil
}

// AssembleAndStore assembles the sections and persists them, replacing any
// previously stored set for the same campaign period.
func (a *Assembler) AssembleAndStore(ctx context.Context, campaignID string, periodStart, periodEnd time.Time, opts Options) ([]domain.ReportSection, error) {
	sections, err := a.Assemble(ctx, campaignID, periodStart, periodEnd, opts)
	if err != nil {
		return nil, err
	}

	period := domain.ReportPeriod{Start: periodStart, End: periodEnd}
	if err := a.sections.Replace(ctx, campaignID, period, sections); err != nil {
		return nil, fmt.Errorf("store sections: %w", err)
	}
	return sections, nil
}

func groupByProfile(metrics []domain.DailyMetric) map[string][]domain.DailyMetric {
	grouped := make(map[string][]domain.DailyMetric)
	for _, m := range metrics {
		grouped[m.ProfileID] = append(grouped[m.ProfileID], m)
	}
	for id := range grouped {
		rows := grouped[id]
		sort.Slice(rows, func(i, j int) bool { return rows[i].MetricDate.Before(rows[j].MetricDate) })
		grouped[id] = rows
	}
	return grouped
}

func (a *Assembler) buildSummary(ctx context.Context, campaignID string, period domain.ReportPeriod, profiles []domain.SocialProfile, byProfile map[string][]domain.DailyMetric) (SummaryPayload, error) {
	summary := SummaryPayload{
		CampaignID:   campaignID,
		PeriodStart:  period.Start,
		PeriodEnd:    period.End,
		ProfileCount: len(profiles),
	}

	var rateSum float64
	var rateRows int
	for _, rows := range byProfile {
		for _, m := range rows {
			summary.TotalPosts += m.PostsCount
			summary.TotalInteractions += m.TotalInteractions()
			summary.TotalViews += m.TotalViews
			rateSum += m.EngagementRate
			rateRows++
		}
	}
	if rateRows > 0 {
		summary.AvgEngagementRate = rateSum / float64(rateRows)
	}

	incomplete := make(map[string]bool)
	failedIDs, err := a.jobs.FailedProfileIDs(ctx, campaignID, period.Start, period.End)
	if err != nil {
		return SummaryPayload{}, fmt.Errorf("list failed profiles: %w", err)
	}
	for _, id := range failedIDs {
		incomplete[id] = true
	}
	for _, p := range profiles {
		if p.IsActive && len(byProfile[p.ID]) == 0 {
			incomplete[p.ID] = true
		}
	}

	for id := range incomplete {
		summary.IncompleteProfileIDs = append(summary.IncompleteProfileIDs, id)
	}
	sort.Strings(summary.IncompleteProfileIDs)

	return summary, nil
}

func buildPlatformMetrics(profiles []domain.SocialProfile, byProfile map[string][]domain.DailyMetric) PlatformMetricsPayload {
	byPlatform := make(map[domain.Platform][]ProfileMetrics)

	for _, p := range profiles {
		rows := byProfile[p.ID]
		if len(rows) == 0 {
			continue
		}

		pm := ProfileMetrics{
			ProfileID:      p.ID,
			Name:           p.Name,
			Username:       p.Username,
			FollowersStart: rows[0].FollowersCount,
			FollowersEnd:   rows[len(rows)-1].FollowersCount,
			MetricDays:     len(rows),
		}
		pm.FollowersGrowth = pm.FollowersEnd - pm.FollowersStart

		var rateSum float64
		for _, m := range rows {
			pm.PostsCount += m.PostsCount
			pm.VideoPostsCount += m.VideoPostsCount
			pm.TotalLikes += m.TotalLikes
			pm.TotalComments += m.TotalComments
			pm.TotalShares += m.TotalShares
			pm.TotalViews += m.TotalViews
			rateSum += m.EngagementRate
		}
		pm.TotalInteractions = pm.TotalLikes + pm.TotalComments + pm.TotalShares
		pm.AvgEngagementRate = rateSum / float64(len(rows))

		byPlatform[p.Platform] = append(byPlatform[p.Platform], pm)
	}

	platforms := make([]domain.Platform, 0, len(byPlatform))
	for platform := range byPlatform {
		platforms = append(platforms, platform)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	payload := PlatformMetricsPayload{}
	for _, platform := range platforms {
		payload.Platforms = append(payload.Platforms, PlatformMetrics{
			Platform: platform,
			Profiles: byPlatform[platform],
		})
	}
	return payload
}

func (a *Assembler) buildTopPosts(ctx context.Context, profiles []domain.SocialProfile, period domain.ReportPeriod, limit int) (TopPostsPayload, error) {
	profileIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		profileIDs = append(profileIDs, p.ID)
	}

	posts, err := a.posts.TopPosts(ctx, profileIDs, period.Start, period.End.AddDate(0, 0, 1), limit)
	if err != nil {
		return TopPostsPayload{}, fmt.Errorf("load top posts: %w", err)
	}

	payload := TopPostsPayload{}
	for _, p := range posts {
		payload.Posts = append(payload.Posts, TopPost{
			PostID:          p.ID,
			ProfileID:       p.ProfileID,
			Content:         p.Content,
			ContentType:     p.ContentType,
			LikesCount:      p.LikesCount,
			CommentsCount:   p.CommentsCount,
			SharesCount:     p.SharesCount,
			ViewsCount:      p.ViewsCount,
			TotalEngagement: p.TotalEngagement(),
			PublishedAt:     p.PublishedAt,
		})
	}
	return payload, nil
}

// buildSentiment returns false when no scored content exists in the period;
// the sentiment section is then omitted entirely.
func buildSentiment(byProfile map[string][]domain.DailyMetric) (SentimentPayload, bool) {
	payload := SentimentPayload{
		ByProfile: make(map[string]domain.SentimentDistribution),
	}

	var weightedSum float64
	for profileID, rows := range byProfile {
		dist := domain.SentimentDistribution{}
		var profileWeighted float64
		for _, m := range rows {
			s := m.Sentiment()
			dist.Positive += s.Positive
			dist.Neutral += s.Neutral
			dist.Negative += s.Negative
			profileWeighted += s.AvgScore * float64(s.Positive+s.Neutral+s.Negative)
		}
		if !dist.Scored() {
			continue
		}
		dist.AvgScore = profileWeighted / float64(dist.Positive+dist.Neutral+dist.Negative)
		payload.ByProfile[profileID] = dist

		payload.Overall.Positive += dist.Positive
		payload.Overall.Neutral += dist.Neutral
		payload.Overall.Negative += dist.Negative
		weightedSum += profileWeighted
	}

	if !payload.Overall.Scored() {
		return SentimentPayload{}, false
	}
	payload.Overall.AvgScore = weightedSum / float64(payload.Overall.Positive+payload.Overall.Neutral+payload.Overall.Negative)
	return payload, true
}

// buildGrowth returns nil when the preceding period has no metrics; the
// growth section is then omitted rather than zero-filled.
func (a *Assembler) buildGrowth(ctx context.Context, campaignID string, period domain.ReportPeriod, current []domain.DailyMetric) (*GrowthPayload, error) {
	prevPeriod := period.Preceding()

	previous, err := a.metrics.ListRange(ctx, campaignID, prevPeriod.Start, prevPeriod.End)
	if err != nil {
		return nil, fmt.Errorf("load preceding metrics: %w", err)
	}
	if len(previous) == 0 {
		return nil, nil
	}

	cur := periodTotals(period, current)
	prev := periodTotals(prevPeriod, previous)

	return &GrowthPayload{
		Current:           cur,
		Previous:          prev,
		FollowersDelta:    cur.Followers - prev.Followers,
		InteractionsDelta: cur.TotalInteractions - prev.TotalInteractions,
		EngagementDelta:   cur.AvgEngagementRate - prev.AvgEngagementRate,
	}, nil
}

// periodTotals sums a period, taking each profile's latest follower count.
func periodTotals(period domain.ReportPeriod, metrics []domain.DailyMetric) PeriodTotals {
	totals := PeriodTotals{
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}

	latestFollowers := make(map[string]domain.DailyMetric)
	var rateSum float64
	for _, m := range metrics {
		totals.TotalPosts += m.PostsCount
		totals.TotalInteractions += m.TotalInteractions()
		rateSum += m.EngagementRate

		if prev, ok := latestFollowers[m.ProfileID]; !ok || m.MetricDate.After(prev.MetricDate) {
			latestFollowers[m.ProfileID] = m
		}
	}
	for _, m := range latestFollowers {
		totals.Followers += m.FollowersCount
	}
	if len(metrics) > 0 {
		totals.AvgEngagementRate = rateSum / float64(len(metrics))
	}

	return totals
}
