package jobs

import (
	"errors"
	"testing"
	"time"

	"hcp_job_processor/platform/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	want := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)

	for _, raw := range []string{
		"2024-03-01T15:00:00Z",
		"2024-03-01T15:00:00.000Z",
		"2024-03-01T10:00:00-05:00",
		"2024-03-01 15:00:00",
		" 2024-03-01T15:00:00Z ",
	} {
		got, err := NormalizeDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), "%s parsed as %s", raw, got)
		assert.Equal(t, time.UTC, got.Location(), raw)
	}
}

func TestNormalizeDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "not-a-timestamp"} {
		_, err := NormalizeDate(raw)
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrInvalidTimestamp), raw)
		assert.True(t, apperr.Is(err, apperr.KindValidation), raw)
	}
}

func TestNormalizeTimesDefaultsUpdatedToNow(t *testing.T) {
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	times, err := normalizeTimes(JobPayload{CreatedAt: "2024-03-01T15:00:00Z"}, now)
	require.NoError(t, err)
	assert.Equal(t, now, times.updated)
	assert.Nil(t, times.completed)
	assert.Nil(t, times.schedule)
}

func TestNormalizeTimesFailsOnBadCreatedOrUpdated(t *testing.T) {
	now := time.Now()

	_, err := normalizeTimes(JobPayload{}, now)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)

	_, err = normalizeTimes(JobPayload{CreatedAt: "2024-03-01T15:00:00Z", UpdatedAt: "not-a-timestamp"}, now)
	assert.ErrorIs(t, err, ErrInvalidTimestamp)
}

func TestNormalizeTimesDropsBadOptionalDates(t *testing.T) {
	times, err := normalizeTimes(JobPayload{
		CreatedAt:   "2024-03-01T15:00:00Z",
		CompletedAt: "not-a-timestamp",
		Schedule:    &PayloadSchedule{ScheduledStart: "2024-03-05T13:00:00Z", ScheduledEnd: "not-a-timestamp"},
	}, time.Now())
	require.NoError(t, err)

	assert.Nil(t, times.completed)
	require.NotNil(t, times.schedule)
	require.NotNil(t, times.schedule.ScheduledStart)
	assert.Equal(t, time.Date(2024, 3, 5, 13, 0, 0, 0, time.UTC), *times.schedule.ScheduledStart)
	assert.Nil(t, times.schedule.ScheduledEnd)
}
