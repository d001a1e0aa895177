package domain

import "time"

// SectionType identifies one kind of report content block.
type SectionType string

const (
	SectionSummary         SectionType = "summary"
	SectionPlatformMetrics SectionType = "platform_metrics"
	SectionTopPosts        SectionType = "top_posts"
	SectionSentiment       SectionType = "sentiment"
	SectionGrowth          SectionType = "growth"
)

// ReportSection is one ordered, typed block of derived report content.
// Payload is a self-contained structure for the external renderer;
// sections carry no layout decisions.
type ReportSection struct {
	ID         string      `db:"id"`
	CampaignID string      `db:"campaign_id"`
	Type       SectionType `db:"section_type"`
	Title      string      `db:"title"`
	OrderIndex int         `db:"order_index"`
	Payload    any         `db:"-"`
	CreatedAt  time.Time   `db:"created_at"`
}

// ReportPeriod is a closed date range a report covers.
type ReportPeriod struct {
	Start time.Time
	End   time.Time
}

// Days returns the period length in calendar days, inclusive.
func (p ReportPeriod) Days() int {
	return int(p.End.Sub(p.Start).Hours()/24) + 1
}

// Preceding returns the period of equal length immediately before this one.
func (p ReportPeriod) Preceding() ReportPeriod {
	span := p.End.Sub(p.Start)
	return ReportPeriod{
		Start: p.Start.Add(-span - 24*time.Hour),
		End:   p.Start.Add(-24 * time.Hour),
	}
}
