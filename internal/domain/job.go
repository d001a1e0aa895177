package domain

import "time"

// JobKind selects how much data a job pulls.
type JobKind string

const (
	JobKindFull        JobKind = "full"
	JobKindIncremental JobKind = "incremental"
	JobKindMetricsOnly JobKind = "metrics_only"
)

// JobState is the extraction job lifecycle state.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final. Terminal jobs are immutable.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateCancelled
}

// ExtractionJob is one scheduled unit of extraction work for a profile.
type ExtractionJob struct {
	ID            string     `db:"id"`
	ProfileID     string     `db:"profile_id"`
	CampaignID    string     `db:"campaign_id"`
	Kind          JobKind    `db:"kind"`
	State         JobState   `db:"state"`
	Attempts      int        `db:"attempts"`
	ProviderRunID *string    `db:"provider_run_id"`
	EnqueuedAt    time.Time  `db:"enqueued_at"`
	StartedAt     *time.Time `db:"started_at"`
	CompletedAt   *time.Time `db:"completed_at"`
	ErrorKind     *string    `db:"error_kind"`
	ErrorMessage  *string    `db:"error_message"`

	ExtractedPosts    int `db:"extracted_posts"`
	ExtractedComments int `db:"extracted_comments"`
	SkippedRecords    int `db:"skipped_records"`
}

// JobResult summarizes one completed job execution.
type JobResult struct {
	JobID     string
	ProfileID string
	Posts     int
	Comments  int
	Skipped   int
	Duration  time.Duration
}
