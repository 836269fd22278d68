package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidTimestamp marks a created/updated timestamp that cannot be parsed.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	// ErrUnknownEventType marks an event tag outside the supported set.
	ErrUnknownEventType = errors.New("unknown event type")
	// ErrJobNotFound is returned by lookups that require a record.
	ErrJobNotFound = errors.New("job record not found")
)

// Store lookups return (nil, nil) when nothing matches.

// CallFilter selects a company's calls from one phone number inside [From, To).
type CallFilter struct {
	CompanyID   uuid.UUID
	PhoneNumber string
	From        time.Time
	To          time.Time
}

// CallStore reads calls and conditionally tags them.
type CallStore interface {
	FindCalls(ctx context.Context, filter CallFilter) ([]CallRecord, error)
	// AppendTagUnlessPresent adds tag to the call unless any of excluded is
	// already present (case-insensitive). Unknown call ids are a no-op.
	AppendTagUnlessPresent(ctx context.Context, callID string, excluded []string, tag string) error
}

// JobStore persists parent job records.
type JobStore interface {
	// FindByID returns the record with the given id.
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*JobRecord, error)
	// FindByHcpID matches the combined id exactly.
	FindByHcpID(ctx context.Context, companyID uuid.UUID, hcpID string) (*JobRecord, error)
	// FindContaining matches a record whose combined id or component list contains hcpID.
	FindContaining(ctx context.Context, companyID uuid.UUID, hcpID string) (*JobRecord, error)
	// FindByCallID returns the most recently created record linked to callID.
	FindByCallID(ctx context.Context, companyID uuid.UUID, callID string) (*JobRecord, error)
	Insert(ctx context.Context, record JobRecord) (JobRecord, error)
	// Update overwrites the whole record identified by record.ID.
	Update(ctx context.Context, record JobRecord) error
}

// EstimateStore reads estimates linked to calls.
type EstimateStore interface {
	FindByCallID(ctx context.Context, companyID uuid.UUID, callID string) (*Estimate, error)
}

// HistoricalAverageStore reads per-company average revenue snapshots.
type HistoricalAverageStore interface {
	FindExact(ctx context.Context, companyID uuid.UUID, date time.Time) (*HistoricalAverage, error)
	FindMostRecent(ctx context.Context, companyID uuid.UUID) (*HistoricalAverage, error)
}

// LinkedFunc reports whether a call is already linked to any job or estimate.
type LinkedFunc func(ctx context.Context, callID string) (bool, error)

// MatchInput is everything a CallMatcher may consider.
type MatchInput struct {
	Candidates []CallRecord
	JobTime    time.Time
	IsLinked   LinkedFunc
	Source     string
	JobID      string
}

// CallMatcher picks the call that produced a job.
type CallMatcher interface {
	Match(ctx context.Context, in MatchInput) (MatchResult, error)
}

// CallMatcherFunc adapts a function to CallMatcher.
type CallMatcherFunc func(ctx context.Context, in MatchInput) (MatchResult, error)

// Match calls f.
func (f CallMatcherFunc) Match(ctx context.Context, in MatchInput) (MatchResult, error) {
	return f(ctx, in)
}

// RevenueLossInput describes the job state after an event was applied.
type RevenueLossInput struct {
	JobID     string
	CompanyID uuid.UUID
	Status    Status
	Revenue   int64
	CallID    string
	Record    *JobRecord
}

// RevenueLossCalculator records revenue attributable to lost jobs.
type RevenueLossCalculator interface {
	CalculateLostRevenue(ctx context.Context, in RevenueLossInput) error
}

// Geocoder resolves a service address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address Address) (*Location, error)
}

// PhoneNormalizer formats a raw phone number for call lookups.
type PhoneNormalizer func(raw string) string
