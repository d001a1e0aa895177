package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"social_metrics/internal/domain"
)

type SectionStore struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewSectionStore(db *sqlx.DB) *SectionStore {
	return &SectionStore{db: db, tm: NewTransactionManager(db)}
}

// sectionRow maps a report_sections row; the payload round-trips as JSON.
type sectionRow struct {
	ID          string    `db:"id"`
	CampaignID  string    `db:"campaign_id"`
	PeriodStart time.Time `db:"period_start"`
	PeriodEnd   time.Time `db:"period_end"`
	SectionType string    `db:"section_type"`
	Title       string    `db:"title"`
	OrderIndex  int       `db:"order_index"`
	Payload     []byte    `db:"payload"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *sectionRow) toDomain() domain.ReportSection {
	return domain.ReportSection{
		ID:         r.ID,
		CampaignID: r.CampaignID,
		Type:       domain.SectionType(r.SectionType),
		Title:      r.Title,
		OrderIndex: r.OrderIndex,
		Payload:    json.RawMessage(r.Payload),
		CreatedAt:  r.CreatedAt,
	}
}

const sectionColumns = `
	id, campaign_id, period_start, period_end, section_type, title,
	order_index, payload, created_at`

// Get returns one stored section by id, or nil when absent.
func (s *SectionStore) Get(ctx context.Context, id string) (*domain.ReportSection, error) {
	var row sectionRow
	query := `SELECT` + sectionColumns + ` FROM report_sections WHERE id = $1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	section := row.toDomain()
	return &section, nil
}

// ListForPeriod returns the stored sections for a campaign period in
// presentation order.
func (s *SectionStore) ListForPeriod(ctx context.Context, campaignID string, period domain.ReportPeriod) ([]domain.ReportSection, error) {
	query := `SELECT` + sectionColumns + `
		FROM report_sections
		WHERE campaign_id = $1 AND period_start = $2 AND period_end = $3
		ORDER BY order_index`

	var rows []sectionRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, campaignID, period.Start, period.End); err != nil {
		return nil, err
	}

	sections := make([]domain.ReportSection, len(rows))
	for i := range rows {
		sections[i] = rows[i].toDomain()
	}
	return sections, nil
}

// Replace drops any stored sections for the campaign period and writes the
// new set atomically. Reports are regenerated wholesale, never patched.
func (s *SectionStore) Replace(ctx context.Context, campaignID string, period domain.ReportPeriod, sections []domain.ReportSection) error {
	return s.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		_, err := exec.ExecContext(txCtx,
			`DELETE FROM report_sections WHERE campaign_id = $1 AND period_start = $2 AND period_end = $3`,
			campaignID, period.Start, period.End,
		)
		if err != nil {
			return fmt.Errorf("delete stale sections: %w", err)
		}

		query := `
			INSERT INTO report_sections (
				id, campaign_id, period_start, period_end, section_type, title,
				order_index, payload, created_at
			) VALUES (
				:id, :campaign_id, :period_start, :period_end, :section_type, :title,
				:order_index, :payload, :created_at
			)`

		for i := range sections {
			payload, err := json.Marshal(sections[i].Payload)
			if err != nil {
				return fmt.Errorf("marshal section payload %s: %w", sections[i].Type, err)
			}

			row := sectionRow{
				ID:          sections[i].ID,
				CampaignID:  campaignID,
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
				SectionType: string(sections[i].Type),
				Title:       sections[i].Title,
				OrderIndex:  sections[i].OrderIndex,
				Payload:     payload,
				CreatedAt:   sections[i].CreatedAt,
			}
			if _, err := sqlx.NamedExecContext(txCtx, exec, query, &row); err != nil {
				return fmt.Errorf("insert section %s: %w", sections[i].Type, err)
			}
		}
		return nil
	})
}
