package jobs

import (
	"fmt"
	"strings"
	"time"

	"hcp_job_processor/platform/apperr"

	"github.com/araddon/dateparse"
)

// NormalizeDate parses a loosely formatted timestamp into a UTC instant.
// Strings without a zone are read as UTC. A second attempt with an explicit
// UTC suffix covers layouts the detector only accepts with a zone.
func NormalizeDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, invalidTimestamp(raw)
	}

	if t, err := dateparse.ParseIn(trimmed, time.UTC); err == nil {
		return t.UTC(), nil
	}
	if t, err := dateparse.ParseIn(trimmed+" UTC", time.UTC); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, invalidTimestamp(raw)
}

func invalidTimestamp(raw string) error {
	return apperr.Wrap(apperr.KindValidation, fmt.Sprintf("unparseable timestamp %q", raw), ErrInvalidTimestamp).
		WithOp("jobs.NormalizeDate")
}

// jobTimes holds the normalized timestamps of one payload.
type jobTimes struct {
	created   time.Time
	updated   time.Time
	completed *time.Time
	schedule  *Schedule
}

// normalizeTimes parses every timestamp of the payload before anything is
// written. created_at is required; a missing updated_at defaults to now.
// Optional timestamps that do not parse are dropped.
func normalizeTimes(job JobPayload, now time.Time) (jobTimes, error) {
	created, err := NormalizeDate(job.CreatedAt)
	if err != nil {
		return jobTimes{}, fmt.Errorf("created_at: %w", err)
	}

	times := jobTimes{created: created, updated: now.UTC()}
	if strings.TrimSpace(job.UpdatedAt) != "" {
		updated, err := NormalizeDate(job.UpdatedAt)
		if err != nil {
			return jobTimes{}, fmt.Errorf("updated_at: %w", err)
		}
		times.updated = updated
	}

	times.completed = optionalDate(job.CompletedAt)
	if job.Schedule != nil {
		start := optionalDate(job.Schedule.ScheduledStart)
		end := optionalDate(job.Schedule.ScheduledEnd)
		if start != nil || end != nil {
			times.schedule = &Schedule{ScheduledStart: start, ScheduledEnd: end}
		}
	}
	return times, nil
}

func optionalDate(raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	t, err := NormalizeDate(raw)
	if err != nil {
		return nil
	}
	return &t
}
