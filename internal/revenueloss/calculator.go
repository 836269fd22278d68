// Package revenueloss keeps a ledger of revenue lost to canceled jobs that
// came from a tracked call.
package revenueloss

import (
	"context"
	"fmt"
	"math"
	"time"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/logger"

	"github.com/google/uuid"
)

// Entry is one ledger row.
type Entry struct {
	CompanyID  uuid.UUID
	JobID      string
	CallID     string
	Status     jobs.Status
	Revenue    int64
	Estimated  bool
	RecordedAt time.Time
}

// Store persists ledger rows keyed by company and job.
type Store interface {
	Upsert(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, companyID uuid.UUID, jobID string) error
}

// Calculator implements jobs.RevenueLossCalculator.
type Calculator struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

// NewCalculator creates a calculator writing to store.
func NewCalculator(store Store, log *logger.Logger) *Calculator {
	if log == nil {
		log = logger.Nop()
	}
	return &Calculator{store: store, log: log, now: time.Now}
}

// CalculateLostRevenue records a canceled, call-attributed job as lost and
// clears the entry for any other state. A canceled job without an amount is
// valued at the company's historical average.
func (c *Calculator) CalculateLostRevenue(ctx context.Context, in jobs.RevenueLossInput) error {
	if in.Status != jobs.StatusCanceled || in.CallID == "" {
		if err := c.store.Delete(ctx, in.CompanyID, in.JobID); err != nil {
			return fmt.Errorf("clear lost revenue for %s: %w", in.JobID, err)
		}
		return nil
	}

	entry := Entry{
		CompanyID:  in.CompanyID,
		JobID:      in.JobID,
		CallID:     in.CallID,
		Status:     in.Status,
		Revenue:    in.Revenue,
		RecordedAt: c.now().UTC(),
	}
	if entry.Revenue <= 0 && in.Record != nil && in.Record.Average != nil {
		entry.Revenue = int64(math.Round(in.Record.Average.OverallAverageRevenue))
		entry.Estimated = true
	}

	if err := c.store.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("record lost revenue for %s: %w", in.JobID, err)
	}
	c.log.WithContext(ctx).Info("lost revenue recorded",
		"job_id", in.JobID,
		"call_id", in.CallID,
		"revenue", entry.Revenue,
		"estimated", entry.Estimated,
	)
	return nil
}
