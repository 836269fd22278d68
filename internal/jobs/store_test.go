package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// In-memory collaborators shared by the package tests.

type memoryCalls struct {
	mu        sync.Mutex
	calls     []CallRecord
	queries   []CallFilter
	tagWrites int
}

func (m *memoryCalls) FindCalls(_ context.Context, f CallFilter) ([]CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, f)

	var out []CallRecord
	for _, c := range m.calls {
		if c.CompanyID != f.CompanyID || c.PhoneNumber != f.PhoneNumber {
			continue
		}
		if c.CreatedAt.Before(f.From) || !c.CreatedAt.Before(f.To) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryCalls) AppendTagUnlessPresent(_ context.Context, callID string, excluded []string, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagWrites++

	skip := newTagSet(excluded)
	for i := range m.calls {
		if m.calls[i].ID != callID {
			continue
		}
		if skip.matchesAny(m.calls[i].Tags) {
			return nil
		}
		m.calls[i].Tags = append(m.calls[i].Tags, tag)
	}
	return nil
}

func (m *memoryCalls) tags(callID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		if c.ID == callID {
			return c.Tags
		}
	}
	return nil
}

type memoryJobs struct {
	mu      sync.Mutex
	records []JobRecord
	inserts int
	updates int

	// callLookupDelay slows FindByCallID to widen race windows.
	callLookupDelay time.Duration
}

func cloneRecord(r JobRecord) JobRecord {
	if r.Components != nil {
		r.Components = append([]JobComponent(nil), r.Components...)
	}
	return r
}

func (m *memoryJobs) FindByID(_ context.Context, companyID, id uuid.UUID) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CompanyID == companyID && r.ID == id {
			c := cloneRecord(r)
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memoryJobs) FindByHcpID(_ context.Context, companyID uuid.UUID, hcpID string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CompanyID == companyID && r.HcpID == hcpID {
			c := cloneRecord(r)
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memoryJobs) FindContaining(_ context.Context, companyID uuid.UUID, hcpID string) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.CompanyID != companyID {
			continue
		}
		if r.ContainsHcpID(hcpID) || componentIndex(r.Components, hcpID) >= 0 {
			c := cloneRecord(r)
			return &c, nil
		}
	}
	return nil, nil
}

func (m *memoryJobs) FindByCallID(_ context.Context, companyID uuid.UUID, callID string) (*JobRecord, error) {
	if m.callLookupDelay > 0 {
		time.Sleep(m.callLookupDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *JobRecord
	for _, r := range m.records {
		if r.CompanyID == companyID && r.LinkedCallID() == callID {
			c := cloneRecord(r)
			found = &c
		}
	}
	return found, nil
}

func (m *memoryJobs) Insert(_ context.Context, r JobRecord) (JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inserts++
	m.records = append(m.records, cloneRecord(r))
	return r, nil
}

func (m *memoryJobs) Update(_ context.Context, r JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	for i := range m.records {
		if m.records[i].ID == r.ID {
			m.records[i] = cloneRecord(r)
			return nil
		}
	}
	return ErrJobNotFound
}

func (m *memoryJobs) all() []JobRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobRecord, len(m.records))
	for i, r := range m.records {
		out[i] = cloneRecord(r)
	}
	return out
}

type memoryEstimates struct {
	byCall map[string]Estimate
}

func (m *memoryEstimates) FindByCallID(_ context.Context, _ uuid.UUID, callID string) (*Estimate, error) {
	if e, ok := m.byCall[callID]; ok {
		return &e, nil
	}
	return nil, nil
}

type memoryAverages struct {
	exact       map[string]HistoricalAverage
	recent      *HistoricalAverage
	exactLookup []time.Time
}

func (m *memoryAverages) FindExact(_ context.Context, _ uuid.UUID, date time.Time) (*HistoricalAverage, error) {
	m.exactLookup = append(m.exactLookup, date)
	if a, ok := m.exact[date.Format("2006-01-02")]; ok {
		return &a, nil
	}
	return nil, nil
}

func (m *memoryAverages) FindMostRecent(context.Context, uuid.UUID) (*HistoricalAverage, error) {
	return m.recent, nil
}

type recordingRevenueLoss struct {
	mu    sync.Mutex
	calls []RevenueLossInput
}

func (r *recordingRevenueLoss) CalculateLostRevenue(_ context.Context, in RevenueLossInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, in)
	return nil
}

// firstUnlinked matches the first candidate no job or estimate claims yet.
type firstUnlinked struct {
	mu      sync.Mutex
	invoked int
}

func (f *firstUnlinked) Match(ctx context.Context, in MatchInput) (MatchResult, error) {
	f.mu.Lock()
	f.invoked++
	f.mu.Unlock()

	for _, c := range in.Candidates {
		linked, err := in.IsLinked(ctx, c.ID)
		if err != nil {
			return MatchResult{}, err
		}
		if !linked {
			call := c
			return MatchResult{Call: &call, Reason: "first_unlinked", Details: map[string]any{"callId": c.ID}}, nil
		}
	}
	return MatchResult{Reason: "all_linked"}, nil
}

var neverMatch = CallMatcherFunc(func(context.Context, MatchInput) (MatchResult, error) {
	return MatchResult{Reason: "no_call_in_window"}, nil
})
