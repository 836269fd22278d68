package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"hcp_job_processor/internal/jobs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jobTime = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func linkedSet(ids ...string) jobs.LinkedFunc {
	set := map[string]bool{}
	for _, id := range ids {
		set[id] = true
	}
	return func(_ context.Context, id string) (bool, error) { return set[id], nil }
}

func TestMatchPicksMostRecentUnlinkedCallInWindow(t *testing.T) {
	in := jobs.MatchInput{
		JobTime:  jobTime,
		IsLinked: linkedSet("newest"),
		Source:   "housecall_pro",
		Candidates: []jobs.CallRecord{
			{ID: "older", CreatedAt: jobTime.Add(-90 * time.Minute)},
			{ID: "newest", CreatedAt: jobTime.Add(-5 * time.Minute)},
			{ID: "middle", CreatedAt: jobTime.Add(-30 * time.Minute)},
			{ID: "after", CreatedAt: jobTime.Add(time.Minute)},
			{ID: "too_early", CreatedAt: jobTime.Add(-3 * time.Hour)},
		},
	}

	res, err := New(0).Match(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.Call)
	assert.Equal(t, "middle", res.Call.ID)
	assert.Equal(t, ReasonMatched, res.Reason)
	assert.Equal(t, 30, res.Details["minutesBefore"])
}

func TestMatchPrefersLongerCallAtSameInstant(t *testing.T) {
	at := jobTime.Add(-20 * time.Minute)
	in := jobs.MatchInput{
		JobTime:  jobTime,
		IsLinked: linkedSet(),
		Candidates: []jobs.CallRecord{
			{ID: "short", CreatedAt: at, Duration: 15},
			{ID: "long", CreatedAt: at, Duration: 240},
			{ID: "older", CreatedAt: at.Add(-time.Minute), Duration: 900},
		},
	}

	res, err := New(0).Match(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.Call)
	assert.Equal(t, "long", res.Call.ID)

	in.IsLinked = linkedSet("long")
	res, err = New(0).Match(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, res.Call)
	assert.Equal(t, "short", res.Call.ID)
}

func TestMatchReasons(t *testing.T) {
	m := New(time.Hour)
	ctx := context.Background()

	res, err := m.Match(ctx, jobs.MatchInput{JobTime: jobTime})
	require.NoError(t, err)
	assert.Nil(t, res.Call)
	assert.Equal(t, ReasonNoCalls, res.Reason)

	res, err = m.Match(ctx, jobs.MatchInput{
		JobTime:    jobTime,
		Candidates: []jobs.CallRecord{{ID: "a", CreatedAt: jobTime.Add(-2 * time.Hour)}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Call)
	assert.Equal(t, ReasonNoCallInRange, res.Reason)

	res, err = m.Match(ctx, jobs.MatchInput{
		JobTime:    jobTime,
		IsLinked:   linkedSet("a"),
		Candidates: []jobs.CallRecord{{ID: "a", CreatedAt: jobTime.Add(-time.Minute)}},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Call)
	assert.Equal(t, ReasonAllLinked, res.Reason)
}

func TestMatchPropagatesLinkLookupErrors(t *testing.T) {
	boom := errors.New("db down")
	_, err := New(0).Match(context.Background(), jobs.MatchInput{
		JobTime:    jobTime,
		IsLinked:   func(context.Context, string) (bool, error) { return false, boom },
		Candidates: []jobs.CallRecord{{ID: "a", CreatedAt: jobTime}},
	})
	assert.ErrorIs(t, err, boom)
}
