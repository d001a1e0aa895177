package domain

import "time"

// SentimentDistribution buckets scored content for one day.
// Scores above 0.2 count as positive, below -0.2 as negative.
type SentimentDistribution struct {
	Positive int     `json:"positive"`
	Neutral  int     `json:"neutral"`
	Negative int     `json:"negative"`
	AvgScore float64 `json:"avg_score"`
}

// Scored reports whether any sentiment data landed in the bucket.
func (d SentimentDistribution) Scored() bool {
	return d.Positive+d.Neutral+d.Negative > 0
}

// DailyMetric is the aggregate row for one (profile, calendar day).
// EngagementRate holds (likes+comments+shares)/followers, or 0 when the
// followers count is 0.
type DailyMetric struct {
	ProfileID  string    `db:"profile_id"`
	MetricDate time.Time `db:"metric_date"` // midnight, profile timezone
	JobID      *string   `db:"job_id"`

	FollowersCount  int `db:"followers_count"`
	FollowingCount  int `db:"following_count"`
	FollowersGrowth int `db:"followers_growth"`

	PostsCount      int `db:"posts_count"`
	VideoPostsCount int `db:"video_posts_count"`
	ImagePostsCount int `db:"image_posts_count"`
	TextPostsCount  int `db:"text_posts_count"`

	TotalLikes    int `db:"total_likes"`
	TotalComments int `db:"total_comments"`
	TotalShares   int `db:"total_shares"`
	TotalViews    int `db:"total_views"`

	EngagementRate float64 `db:"engagement_rate"`

	SentimentPositive int     `db:"sentiment_positive"`
	SentimentNeutral  int     `db:"sentiment_neutral"`
	SentimentNegative int     `db:"sentiment_negative"`
	SentimentAvg      float64 `db:"sentiment_avg"`

	TopPostID         *string `db:"top_post_id"`
	TopPostEngagement int     `db:"top_post_engagement"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TotalInteractions is the day's summed interaction count.
func (m *DailyMetric) TotalInteractions() int {
	return m.TotalLikes + m.TotalComments + m.TotalShares
}

// RecalculateEngagementRate applies the engagement-rate invariant.
func (m *DailyMetric) RecalculateEngagementRate() {
	if m.FollowersCount > 0 {
		m.EngagementRate = float64(m.TotalInteractions()) / float64(m.FollowersCount)
	} else {
		m.EngagementRate = 0
	}
}

// Sentiment returns the day's distribution.
func (m *DailyMetric) Sentiment() SentimentDistribution {
	return SentimentDistribution{
		Positive: m.SentimentPositive,
		Neutral:  m.SentimentNeutral,
		Negative: m.SentimentNegative,
		AvgScore: m.SentimentAvg,
	}
}
