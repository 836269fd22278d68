package repository

import (
	"context"
	"errors"
	"fmt"

	"hcp_job_processor/internal/jobs"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the repositories use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const jobColumns = `id, company_id, hcp_id, callrail_call_id, match_reason, match_details, job_components,
	revenue, job_status, job_created_at, job_updated_at, job_completed_at, schedule, customer,
	assigned_employees, job_category, job_type, average, address, latitude, longitude, location_label,
	lead_source`

// JobRepository implements jobs.JobStore.
type JobRepository struct {
	db DB
}

// NewJobRepository creates a job repository.
func NewJobRepository(db DB) *JobRepository {
	return &JobRepository{db: db}
}

// FindByID returns the record with the given id.
func (r *JobRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*jobs.JobRecord, error) {
	return r.findOne(ctx, `
		SELECT `+jobColumns+`
		FROM hcp_jobs
		WHERE company_id = $1 AND id = $2
	`, companyID, id)
}

// FindByHcpID matches the combined id exactly.
func (r *JobRepository) FindByHcpID(ctx context.Context, companyID uuid.UUID, hcpID string) (*jobs.JobRecord, error) {
	return r.findOne(ctx, `
		SELECT `+jobColumns+`
		FROM hcp_jobs
		WHERE company_id = $1 AND hcp_id = $2
	`, companyID, hcpID)
}

// FindContaining matches records whose combined id lists hcpID or whose
// components include it.
func (r *JobRepository) FindContaining(ctx context.Context, companyID uuid.UUID, hcpID string) (*jobs.JobRecord, error) {
	return r.findOne(ctx, `
		SELECT `+jobColumns+`
		FROM hcp_jobs
		WHERE company_id = $1
		  AND ($2 = ANY(string_to_array(replace(hcp_id, ' ', ''), ','))
		       OR job_components @> jsonb_build_array(jsonb_build_object('hcpId', $2::text)))
		ORDER BY created_at DESC
		LIMIT 1
	`, companyID, hcpID)
}

// FindByCallID returns the newest record linked to callID.
func (r *JobRepository) FindByCallID(ctx context.Context, companyID uuid.UUID, callID string) (*jobs.JobRecord, error) {
	return r.findOne(ctx, `
		SELECT `+jobColumns+`
		FROM hcp_jobs
		WHERE company_id = $1 AND callrail_call_id = $2
		ORDER BY job_created_at DESC NULLS LAST, created_at DESC
		LIMIT 1
	`, companyID, callID)
}

// Insert stores a new record.
func (r *JobRepository) Insert(ctx context.Context, record jobs.JobRecord) (jobs.JobRecord, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	args, err := jobArgs(record)
	if err != nil {
		return jobs.JobRecord{}, err
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO hcp_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`, args...)
	if err != nil {
		return jobs.JobRecord{}, translatePgError("repository.JobRepository.Insert", err)
	}
	return record, nil
}

// Update overwrites the record with the same id.
func (r *JobRepository) Update(ctx context.Context, record jobs.JobRecord) error {
	args, err := jobArgs(record)
	if err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE hcp_jobs SET
			hcp_id = $3, callrail_call_id = $4, match_reason = $5, match_details = $6,
			job_components = $7, revenue = $8, job_status = $9, job_created_at = $10,
			job_updated_at = $11, job_completed_at = $12, schedule = $13, customer = $14,
			assigned_employees = $15, job_category = $16, job_type = $17, average = $18,
			address = $19, latitude = $20, longitude = $21, location_label = $22,
			lead_source = $23, updated_at = now()
		WHERE id = $1 AND company_id = $2
	`, args...)
	if err != nil {
		return translatePgError("repository.JobRepository.Update", err)
	}
	if tag.RowsAffected() == 0 {
		return jobs.ErrJobNotFound
	}
	return nil
}

// ListMissingLocation returns records with an address but no coordinates.
func (r *JobRepository) ListMissingLocation(ctx context.Context, limit int) ([]jobs.JobRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+jobColumns+`
		FROM hcp_jobs
		WHERE latitude IS NULL AND address IS NOT NULL
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []jobs.JobRecord
	for rows.Next() {
		record, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// SetLocation stores geocoded coordinates on a record.
func (r *JobRepository) SetLocation(ctx context.Context, id uuid.UUID, loc jobs.Location) error {
	_, err := r.db.Exec(ctx, `
		UPDATE hcp_jobs SET latitude = $2, longitude = $3, location_label = $4, updated_at = now()
		WHERE id = $1
	`, id, loc.Lat, loc.Lon, nullableString(loc.Label))
	return err
}

func (r *JobRepository) findOne(ctx context.Context, query string, args ...any) (*jobs.JobRecord, error) {
	record, err := scanJob(r.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func scanJob(row pgx.Row) (jobs.JobRecord, error) {
	var record jobs.JobRecord
	var status string
	var callID, matchReason, category, jobType, label, source *string
	var details, components, schedule, customer, crew, average, address []byte
	var lat, lon *float64

	err := row.Scan(
		&record.ID, &record.CompanyID, &record.HcpID, &callID, &matchReason, &details, &components,
		&record.Revenue, &status, &record.CreatedAt, &record.UpdatedAt, &record.CompletedAt, &schedule, &customer,
		&crew, &category, &jobType, &average, &address, &lat, &lon, &label,
		&source,
	)
	if err != nil {
		return jobs.JobRecord{}, err
	}

	record.Status = jobs.Status(status)
	record.CallID = callID
	record.MatchReason = deref(matchReason)
	record.Category = deref(category)
	record.Type = deref(jobType)
	record.LeadSource = deref(source)
	if lat != nil && lon != nil {
		record.Location = &jobs.Location{Lat: *lat, Lon: *lon, Label: deref(label)}
	}

	decoders := []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"match_details", details, &record.MatchDetails},
		{"job_components", components, &record.Components},
		{"schedule", schedule, &record.Schedule},
		{"customer", customer, &record.Customer},
		{"assigned_employees", crew, &record.AssignedEmployees},
		{"average", average, &record.Average},
		{"address", address, &record.Address},
	}
	for _, d := range decoders {
		if err := unmarshalJSON(d.raw, d.dst); err != nil {
			return jobs.JobRecord{}, fmt.Errorf("decode %s of job %s: %w", d.name, record.ID, err)
		}
	}
	return record, nil
}

func jobArgs(record jobs.JobRecord) ([]any, error) {
	details, err := marshalMap(record.MatchDetails)
	if err != nil {
		return nil, fmt.Errorf("encode match details: %w", err)
	}
	components, err := marshalSlice(persistedComponents(record.Components))
	if err != nil {
		return nil, fmt.Errorf("encode components: %w", err)
	}
	schedule, err := marshalPtr(record.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}
	customer, err := marshalPtr(record.Customer)
	if err != nil {
		return nil, fmt.Errorf("encode customer: %w", err)
	}
	crew, err := marshalSlice(record.AssignedEmployees)
	if err != nil {
		return nil, fmt.Errorf("encode employees: %w", err)
	}
	average, err := marshalPtr(record.Average)
	if err != nil {
		return nil, fmt.Errorf("encode average: %w", err)
	}
	address, err := marshalPtr(record.Address)
	if err != nil {
		return nil, fmt.Errorf("encode address: %w", err)
	}

	var lat, lon *float64
	var label *string
	if record.Location != nil {
		lat, lon = &record.Location.Lat, &record.Location.Lon
		label = nullableString(record.Location.Label)
	}

	return []any{
		record.ID, record.CompanyID, record.HcpID, record.CallID, nullableString(record.MatchReason), details, components,
		record.Revenue, string(record.Status.Mirrored()), record.CreatedAt, record.UpdatedAt, record.CompletedAt, schedule, customer,
		crew, nullableString(record.Category), nullableString(record.Type), average, address, lat, lon, label,
		nullableString(record.LeadSource),
	}, nil
}

// persistedComponents stores the updated tier as created.
func persistedComponents(components []jobs.JobComponent) []jobs.JobComponent {
	if len(components) == 0 {
		return nil
	}
	out := make([]jobs.JobComponent, len(components))
	for i, c := range components {
		c.Status = c.Status.Mirrored()
		out[i] = c
	}
	return out
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
