package repository

import (
	"context"
	"errors"

	"hcp_job_processor/internal/jobs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EstimateRepository implements jobs.EstimateStore.
type EstimateRepository struct {
	db DB
}

// NewEstimateRepository creates an estimate repository.
func NewEstimateRepository(db DB) *EstimateRepository {
	return &EstimateRepository{db: db}
}

// FindByCallID returns the newest estimate linked to callID.
func (r *EstimateRepository) FindByCallID(ctx context.Context, companyID uuid.UUID, callID string) (*jobs.Estimate, error) {
	var e jobs.Estimate
	err := r.db.QueryRow(ctx, `
		SELECT id, estimate_id, company_id, callrail_call_id, created_at
		FROM hcp_estimates
		WHERE company_id = $1 AND callrail_call_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, companyID, callID).Scan(&e.ID, &e.EstimateID, &e.CompanyID, &e.CallID, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
