package domain

import "time"

// RecordKind distinguishes posts from comments in a provider stream.
type RecordKind string

const (
	RecordKindPost    RecordKind = "post"
	RecordKindComment RecordKind = "comment"
)

// ContentType classifies post media.
type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeVideo    ContentType = "video"
	ContentTypeCarousel ContentType = "carousel"
)

// RawRecord is one post or comment as returned by a provider. Records are
// immutable once stored and deduplicated by (profile id, platform id).
type RawRecord struct {
	Kind           RecordKind
	PlatformID     string
	ParentPostID   string // platform post id, set for comments
	Content        string
	ContentType    ContentType
	LikesCount     int
	CommentsCount  int
	SharesCount    int
	ViewsCount     int
	PublishedAt    time.Time
	SentimentScore *float64 // -1..1, when the provider scores content
}

// TotalEngagement is the record's summed interaction count.
func (r *RawRecord) TotalEngagement() int {
	return r.LikesCount + r.CommentsCount + r.SharesCount
}

// ProfileSnapshot captures audience counts observed during one pull.
type ProfileSnapshot struct {
	FollowersCount int
	FollowingCount int
	ObservedAt     time.Time
}

// ExtractionResult is everything one successful pull produced: the audience
// snapshot, the stored records, and how many malformed records were dropped.
type ExtractionResult struct {
	ProfileID string
	Snapshot  ProfileSnapshot
	Records   []RawRecord
	Skipped   int
}

// Post is a stored post row with its dedup identity.
type Post struct {
	ID             string      `db:"id"`
	ProfileID      string      `db:"profile_id"`
	JobID          *string     `db:"job_id"`
	PlatformPostID string      `db:"platform_post_id"`
	Content        string      `db:"content"`
	ContentType    ContentType `db:"content_type"`
	LikesCount     int         `db:"likes_count"`
	CommentsCount  int         `db:"comments_count"`
	SharesCount    int         `db:"shares_count"`
	ViewsCount     int         `db:"views_count"`
	SentimentScore *float64    `db:"sentiment_score"`
	PublishedAt    time.Time   `db:"published_at"`
	ExtractedAt    time.Time   `db:"extracted_at"`
}

// TotalEngagement is the post's summed interaction count.
func (p *Post) TotalEngagement() int {
	return p.LikesCount + p.CommentsCount + p.SharesCount
}

// Comment is a stored comment row attached to a post by platform id.
type Comment struct {
	ID                string    `db:"id"`
	ProfileID         string    `db:"profile_id"`
	PlatformCommentID string    `db:"platform_comment_id"`
	PlatformPostID    string    `db:"platform_post_id"`
	Content           string    `db:"content"`
	LikesCount        int       `db:"likes_count"`
	SentimentScore    *float64  `db:"sentiment_score"`
	PublishedAt       time.Time `db:"published_at"`
	ExtractedAt       time.Time `db:"extracted_at"`
}
