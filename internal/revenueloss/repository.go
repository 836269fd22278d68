package revenueloss

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository stores ledger rows in hcp_lost_revenue.
type Repository struct {
	db Execer
}

// NewRepository creates a ledger repository.
func NewRepository(db Execer) *Repository {
	return &Repository{db: db}
}

// Upsert inserts or refreshes the row for the entry's job.
func (r *Repository) Upsert(ctx context.Context, entry Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO hcp_lost_revenue (company_id, hcp_job_id, callrail_call_id, job_status, revenue, estimated, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (company_id, hcp_job_id) DO UPDATE SET
			callrail_call_id = EXCLUDED.callrail_call_id,
			job_status = EXCLUDED.job_status,
			revenue = EXCLUDED.revenue,
			estimated = EXCLUDED.estimated,
			recorded_at = EXCLUDED.recorded_at
	`, entry.CompanyID, entry.JobID, entry.CallID, string(entry.Status), entry.Revenue, entry.Estimated, entry.RecordedAt)
	return err
}

// Delete removes the row for a job, if any.
func (r *Repository) Delete(ctx context.Context, companyID uuid.UUID, jobID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM hcp_lost_revenue WHERE company_id = $1 AND hcp_job_id = $2
	`, companyID, jobID)
	return err
}
