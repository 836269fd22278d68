package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkedRecord(company uuid.UUID, hcpID, callID string, created time.Time) JobRecord {
	at := created
	id := callID
	return JobRecord{
		ID:        uuid.New(),
		HcpID:     hcpID,
		CompanyID: company,
		CallID:    &id,
		Snapshot:  Snapshot{Status: StatusCreated, CreatedAt: &at},
	}
}

func TestResolvePrefersQualifiedOverRecency(t *testing.T) {
	company := uuid.New()
	jobTime := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	jobs := &memoryJobs{records: []JobRecord{
		linkedRecord(company, "job_old", "call_qualified", jobTime.AddDate(0, 0, -20)),
		linkedRecord(company, "job_new", "call_recent", jobTime.AddDate(0, 0, -1)),
	}}
	candidates := []CallRecord{
		{ID: "call_recent", CreatedAt: jobTime.AddDate(0, 0, -1)},
		{ID: "call_qualified", CreatedAt: jobTime.AddDate(0, 0, -20), Tags: []string{"Qualified Lead"}},
	}

	got, err := NewLinkedJobResolver(jobs, []string{"qualified lead"}).Resolve(context.Background(), company, candidates, jobTime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job_old", got.HcpID)
}

func TestResolveOrdersEachGroupNewestFirst(t *testing.T) {
	company := uuid.New()
	jobTime := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	jobs := &memoryJobs{records: []JobRecord{
		linkedRecord(company, "job_a", "call_a", jobTime.AddDate(0, 0, -10)),
		linkedRecord(company, "job_b", "call_b", jobTime.AddDate(0, 0, -5)),
	}}
	candidates := []CallRecord{
		{ID: "call_a", CreatedAt: jobTime.AddDate(0, 0, -10)},
		{ID: "call_b", CreatedAt: jobTime.AddDate(0, 0, -5)},
	}

	got, err := NewLinkedJobResolver(jobs, nil).Resolve(context.Background(), company, candidates, jobTime)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "job_b", got.HcpID)
}

func TestResolveLookbackBounds(t *testing.T) {
	company := uuid.New()
	jobTime := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		created time.Time
		want    bool
	}{
		{"exactly thirty days", jobTime.Add(-linkedJobLookback), true},
		{"same instant", jobTime, true},
		{"just past thirty days", jobTime.Add(-linkedJobLookback - time.Second), false},
		{"after the job", jobTime.Add(time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			jobs := &memoryJobs{records: []JobRecord{linkedRecord(company, "job_x", "call_x", tc.created)}}
			got, err := NewLinkedJobResolver(jobs, nil).Resolve(context.Background(), company,
				[]CallRecord{{ID: "call_x", CreatedAt: tc.created}}, jobTime)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got != nil)
		})
	}
}

func TestResolveSkipsRecordsWithoutCreationTime(t *testing.T) {
	company := uuid.New()
	id := "call_x"
	jobs := &memoryJobs{records: []JobRecord{{ID: uuid.New(), HcpID: "job_x", CompanyID: company, CallID: &id}}}

	got, err := NewLinkedJobResolver(jobs, nil).Resolve(context.Background(), company,
		[]CallRecord{{ID: id}}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveWithNoCandidates(t *testing.T) {
	got, err := NewLinkedJobResolver(&memoryJobs{}, nil).Resolve(context.Background(), uuid.New(), nil, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}
