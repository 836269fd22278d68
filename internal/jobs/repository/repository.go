// Package repository implements the job engine's stores on PostgreSQL.
package repository

import (
	"encoding/json"
	"errors"

	"hcp_job_processor/platform/apperr"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository groups the pgx-backed stores over one pool.
type Repository struct {
	Calls     *CallRepository
	Jobs      *JobRepository
	Estimates *EstimateRepository
	Averages  *AverageRepository
}

// New wires every store to db.
func New(db DB) *Repository {
	return &Repository{
		Calls:     NewCallRepository(db),
		Jobs:      NewJobRepository(db),
		Estimates: NewEstimateRepository(db),
		Averages:  NewAverageRepository(db),
	}
}

// translatePgError maps constraint violations onto application errors.
func translatePgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return apperr.Wrap(apperr.KindConflict, "job record already exists", err).WithOp(op)
	case pgerrcode.ForeignKeyViolation:
		return apperr.Wrap(apperr.KindValidation, "referenced company does not exist", err).WithOp(op)
	}
	return err
}

func marshalPtr[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalSlice[T any](v []T) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalMap[V any](v map[string]V) ([]byte, error) {
	if len(v) == 0 {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
