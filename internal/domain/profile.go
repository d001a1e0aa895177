package domain

import "time"

// Platform identifies one supported social network.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformTwitter   Platform = "twitter"
	PlatformYouTube   Platform = "youtube"
)

// MonitoringFrequency controls how often a campaign's profiles are pulled
// and how long extraction results stay cached.
type MonitoringFrequency string

const (
	FrequencyHourly MonitoringFrequency = "hourly"
	FrequencyDaily  MonitoringFrequency = "daily"
	FrequencyWeekly MonitoringFrequency = "weekly"
)

// CacheTTL returns how long an extraction result for this frequency may be
// reused. Kept a bit under the nominal period to tolerate clock skew between
// the trigger and the cache.
func (f MonitoringFrequency) CacheTTL() time.Duration {
	switch f {
	case FrequencyHourly:
		return 50 * time.Minute
	case FrequencyWeekly:
		return 6 * 24 * time.Hour
	default:
		return 20 * time.Hour
	}
}

// Interval returns the nominal time between extractions.
func (f MonitoringFrequency) Interval() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Campaign groups the profiles monitored for one client. The engine reads
// campaign configuration; campaign lifecycle is owned elsewhere.
type Campaign struct {
	ID                  string              `db:"id"`
	Name                string              `db:"name"`
	Slug                string              `db:"slug"`
	Timezone            string              `db:"timezone"`
	MonitoringFrequency MonitoringFrequency `db:"monitoring_frequency"`
	MaxPostsPerProfile  int                 `db:"max_posts_per_profile"`
	ExtractComments     bool                `db:"extract_comments"`
	SentimentAnalysis   bool                `db:"sentiment_analysis"`
	Status              string              `db:"status"`
	CreatedAt           time.Time           `db:"created_at"`
	UpdatedAt           time.Time           `db:"updated_at"`
}

// SocialProfile is one monitored account on one platform.
// Unique per (campaign, platform, username).
type SocialProfile struct {
	ID                       string     `db:"id"`
	CampaignID               string     `db:"campaign_id"`
	Platform                 Platform   `db:"platform"`
	Name                     string     `db:"name"`
	Username                 string     `db:"username"`
	ProfileURL               string     `db:"profile_url"`
	IsActive                 bool       `db:"is_active"`
	MonitoringEnabled        bool       `db:"monitoring_enabled"`
	ConsecutiveFailures      int        `db:"consecutive_failures"`
	LastSuccessfulExtraction *time.Time `db:"last_successful_extraction"`
	LastFailedExtraction     *time.Time `db:"last_failed_extraction"`
	CreatedAt                time.Time  `db:"created_at"`
	UpdatedAt                time.Time  `db:"updated_at"`
}

// Location resolves the profile's reporting timezone. Metrics are bucketed
// by calendar day in this zone, falling back to UTC when unset or invalid.
func (p *SocialProfile) Location(campaignTZ string) *time.Location {
	if campaignTZ == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(campaignTZ)
	if err != nil {
		return time.UTC
	}
	return loc
}
