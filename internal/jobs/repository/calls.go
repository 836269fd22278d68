package repository

import (
	"context"
	"errors"
	"fmt"

	"hcp_job_processor/internal/jobs"

	"github.com/jackc/pgx/v5"
)

const maxTagAttempts = 3

// CallRepository implements jobs.CallStore over callrail_calls.
type CallRepository struct {
	db DB
}

// NewCallRepository creates a call repository.
func NewCallRepository(db DB) *CallRepository {
	return &CallRepository{db: db}
}

// FindCalls returns a phone's calls inside [From, To), newest first.
func (r *CallRepository) FindCalls(ctx context.Context, filter jobs.CallFilter) ([]jobs.CallRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, company_id, customer_phone_number, created_at, tags, duration, COALESCE(source, '')
		FROM callrail_calls
		WHERE company_id = $1
		  AND customer_phone_number = $2
		  AND created_at >= $3
		  AND created_at < $4
		ORDER BY created_at DESC
	`, filter.CompanyID, filter.PhoneNumber, filter.From, filter.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []jobs.CallRecord
	for rows.Next() {
		var call jobs.CallRecord
		if err := rows.Scan(
			&call.ID, &call.CompanyID, &call.PhoneNumber, &call.CreatedAt, &call.Tags, &call.Duration, &call.Source,
		); err != nil {
			return nil, err
		}
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// AppendTagUnlessPresent appends tag unless the call carries an excluded
// tag. Tags are compared with jobs.HasAnyTag; the write only lands if the
// tags are unchanged since they were read, and is retried otherwise.
func (r *CallRepository) AppendTagUnlessPresent(ctx context.Context, callID string, excluded []string, tag string) error {
	for attempt := 0; attempt < maxTagAttempts; attempt++ {
		var tags []string
		err := r.db.QueryRow(ctx, `SELECT tags FROM callrail_calls WHERE id = $1`, callID).Scan(&tags)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read tags of call %s: %w", callID, err)
		}
		if jobs.HasAnyTag(tags, excluded) {
			return nil
		}
		if tags == nil {
			tags = []string{}
		}

		cmd, err := r.db.Exec(ctx, `
			UPDATE callrail_calls
			SET tags = array_append(tags, $2)
			WHERE id = $1 AND tags = $3::text[]
		`, callID, tag, tags)
		if err != nil {
			return fmt.Errorf("tag call %s: %w", callID, err)
		}
		if cmd.RowsAffected() > 0 {
			return nil
		}
	}
	return fmt.Errorf("tag call %s: tags kept changing", callID)
}
