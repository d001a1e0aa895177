package report

import (
	"time"

	"social_metrics/internal/domain"
)

// SummaryPayload opens every report with campaign-wide totals and the data
// completeness flags.
type SummaryPayload struct {
	CampaignID           string    `json:"campaign_id"`
	PeriodStart          time.Time `json:"period_start"`
	PeriodEnd            time.Time `json:"period_end"`
	ProfileCount         int       `json:"profile_count"`
	TotalPosts           int       `json:"total_posts"`
	TotalInteractions    int       `json:"total_interactions"`
	TotalViews           int       `json:"total_views"`
	AvgEngagementRate    float64   `json:"avg_engagement_rate"`
	IncompleteProfileIDs []string  `json:"incomplete_profile_ids,omitempty"`
}

// PlatformMetricsPayload holds one metrics table per platform.
type PlatformMetricsPayload struct {
	Platforms []PlatformMetrics `json:"platforms"`
}

type PlatformMetrics struct {
	Platform domain.Platform  `json:"platform"`
	Profiles []ProfileMetrics `json:"profiles"`
}

// ProfileMetrics is one profile's row in a platform metrics table.
type ProfileMetrics struct {
	ProfileID         string  `json:"profile_id"`
	Name              string  `json:"name"`
	Username          string  `json:"username"`
	FollowersStart    int     `json:"followers_start"`
	FollowersEnd      int     `json:"followers_end"`
	FollowersGrowth   int     `json:"followers_growth"`
	PostsCount        int     `json:"posts_count"`
	VideoPostsCount   int     `json:"video_posts_count"`
	TotalLikes        int     `json:"total_likes"`
	TotalComments     int     `json:"total_comments"`
	TotalShares       int     `json:"total_shares"`
	TotalViews        int     `json:"total_views"`
	TotalInteractions int     `json:"total_interactions"`
	AvgEngagementRate float64 `json:"avg_engagement_rate"`
	MetricDays        int     `json:"metric_days"`
}

// TopPostsPayload lists the period's highest-engagement posts.
type TopPostsPayload struct {
	Posts []TopPost `json:"posts"`
}

type TopPost struct {
	PostID          string             `json:"post_id"`
	ProfileID       string             `json:"profile_id"`
	Content         string             `json:"content"`
	ContentType     domain.ContentType `json:"content_type"`
	LikesCount      int                `json:"likes_count"`
	CommentsCount   int                `json:"comments_count"`
	SharesCount     int                `json:"shares_count"`
	ViewsCount      int                `json:"views_count"`
	TotalEngagement int                `json:"total_engagement"`
	PublishedAt     time.Time          `json:"published_at"`
}

// SentimentPayload aggregates the period's sentiment distribution, overall
// and per profile.
type SentimentPayload struct {
	Overall   domain.SentimentDistribution            `json:"overall"`
	ByProfile map[string]domain.SentimentDistribution `json:"by_profile"`
}

// GrowthPayload compares the period against the immediately preceding period
// of equal length.
type GrowthPayload struct {
	Current           PeriodTotals `json:"current"`
	Previous          PeriodTotals `json:"previous"`
	FollowersDelta    int          `json:"followers_delta"`
	InteractionsDelta int          `json:"interactions_delta"`
	EngagementDelta   float64      `json:"engagement_delta"`
}

type PeriodTotals struct {
	PeriodStart       time.Time `json:"period_start"`
	PeriodEnd         time.Time `json:"period_end"`
	Followers         int       `json:"followers"`
	TotalPosts        int       `json:"total_posts"`
	TotalInteractions int       `json:"total_interactions"`
	AvgEngagementRate float64   `json:"avg_engagement_rate"`
}
