package jobs

import (
	"context"
	"testing"
	"time"

	"hcp_job_processor/platform/apperr"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveWindowIsHalfOpen(t *testing.T) {
	company := uuid.New()
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &memoryCalls{calls: []CallRecord{
		{ID: "too_old", CompanyID: company, PhoneNumber: "+1", CreatedAt: ref.Add(-candidateWindow - time.Second)},
		{ID: "lower_edge", CompanyID: company, PhoneNumber: "+1", CreatedAt: ref.Add(-candidateWindow)},
		{ID: "inside", CompanyID: company, PhoneNumber: "+1", CreatedAt: ref},
		{ID: "upper_edge", CompanyID: company, PhoneNumber: "+1", CreatedAt: ref.Add(candidateWindow)},
	}}

	got, err := NewCandidateRetriever(store).Retrieve(context.Background(), company, []string{"+1"}, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"lower_edge", "inside"}, callIDs(got))
}

func TestRetrieveDeduplicatesAcrossPhones(t *testing.T) {
	company := uuid.New()
	ref := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &memoryCalls{calls: []CallRecord{
		{ID: "a", CompanyID: company, PhoneNumber: "+1", CreatedAt: ref},
		{ID: "b", CompanyID: company, PhoneNumber: "+2", CreatedAt: ref},
		{ID: "a", CompanyID: company, PhoneNumber: "+2", CreatedAt: ref},
		{ID: "c", CompanyID: uuid.New(), PhoneNumber: "+1", CreatedAt: ref},
	}}

	got, err := NewCandidateRetriever(store).Retrieve(context.Background(), company, []string{"+1", "+2"}, ref)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, callIDs(got))
	require.Len(t, store.queries, 2)
	assert.Equal(t, "+1", store.queries[0].PhoneNumber)
	assert.Equal(t, "+2", store.queries[1].PhoneNumber)
}

func TestRetrieveWithoutPhonesReturnsEmpty(t *testing.T) {
	got, err := NewCandidateRetriever(&memoryCalls{}).Retrieve(context.Background(), uuid.New(), nil, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieveRejectsZeroReference(t *testing.T) {
	_, err := NewCandidateRetriever(&memoryCalls{}).Retrieve(context.Background(), uuid.New(), []string{"+1"}, time.Time{})
	require.ErrorIs(t, err, ErrInvalidTimestamp)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestCustomerPhones(t *testing.T) {
	normalize := func(raw string) string { return "+" + raw }

	assert.Nil(t, customerPhones(nil, normalize))
	assert.Equal(t, []string{"+1", "+2", "+3"}, customerPhones(&Customer{MobileNumber: "1", HomeNumber: "2", WorkNumber: "3"}, normalize))
	assert.Equal(t, []string{"+3", "+1"}, customerPhones(&Customer{HomeNumber: "3", WorkNumber: "1"}, normalize))
	assert.Equal(t, []string{"+1"}, customerPhones(&Customer{MobileNumber: "1", WorkNumber: "1"}, normalize))
	assert.Equal(t, []string{"+1"}, customerPhones(&Customer{MobileNumber: "1", HomeNumber: "1"}, normalize))
	assert.Equal(t, []string{"+2"}, customerPhones(&Customer{MobileNumber: " ", HomeNumber: "2"}, normalize))
	assert.Equal(t, []string{"555"}, customerPhones(&Customer{HomeNumber: "555"}, nil))
}

func callIDs(calls []CallRecord) []string {
	ids := make([]string, len(calls))
	for i, c := range calls {
		ids[i] = c.ID
	}
	return ids
}
