package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hcp_job_processor/internal/jobs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AverageRepository implements jobs.HistoricalAverageStore.
type AverageRepository struct {
	db DB
}

// NewAverageRepository creates a historical average repository.
func NewAverageRepository(db DB) *AverageRepository {
	return &AverageRepository{db: db}
}

const averageColumns = `company_id, date, overall_average_revenue, source_averages, sub_source_averages`

// FindExact returns the snapshot for the calendar day of date.
func (r *AverageRepository) FindExact(ctx context.Context, companyID uuid.UUID, date time.Time) (*jobs.HistoricalAverage, error) {
	return r.findOne(ctx, `
		SELECT `+averageColumns+`
		FROM historical_averages
		WHERE company_id = $1 AND date = $2::date
	`, companyID, date.Format("2006-01-02"))
}

// FindMostRecent returns the latest snapshot of the company.
func (r *AverageRepository) FindMostRecent(ctx context.Context, companyID uuid.UUID) (*jobs.HistoricalAverage, error) {
	return r.findOne(ctx, `
		SELECT `+averageColumns+`
		FROM historical_averages
		WHERE company_id = $1
		ORDER BY date DESC
		LIMIT 1
	`, companyID)
}

func (r *AverageRepository) findOne(ctx context.Context, query string, args ...any) (*jobs.HistoricalAverage, error) {
	var avg jobs.HistoricalAverage
	var sources, subSources []byte
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&avg.CompanyID, &avg.Date, &avg.OverallAverageRevenue, &sources, &subSources,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(sources, &avg.SourceAverages); err != nil {
		return nil, fmt.Errorf("decode source averages: %w", err)
	}
	if err := unmarshalJSON(subSources, &avg.SubSourceAverages); err != nil {
		return nil, fmt.Errorf("decode sub-source averages: %w", err)
	}
	return &avg, nil
}
