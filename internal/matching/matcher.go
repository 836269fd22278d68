// Package matching provides the default call matcher used by the job
// reconciliation engine.
package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"hcp_job_processor/internal/jobs"
)

// Reason codes recorded on job records.
const (
	ReasonMatched       = "matched_within_window"
	ReasonNoCalls       = "no_calls_found"
	ReasonNoCallInRange = "no_call_in_window"
	ReasonAllLinked     = "all_calls_linked"
)

// DefaultWindow is how long before a job a call may have happened.
const DefaultWindow = 2 * time.Hour

// Matcher links a job to the most recent unlinked call that happened in the
// window before the job was created.
type Matcher struct {
	window time.Duration
}

// New returns a matcher looking window back from the job time.
func New(window time.Duration) *Matcher {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Matcher{window: window}
}

// Match implements jobs.CallMatcher.
func (m *Matcher) Match(ctx context.Context, in jobs.MatchInput) (jobs.MatchResult, error) {
	if len(in.Candidates) == 0 {
		return jobs.MatchResult{Reason: ReasonNoCalls, Details: map[string]any{"source": in.Source}}, nil
	}

	from := in.JobTime.Add(-m.window)
	inRange := make([]jobs.CallRecord, 0, len(in.Candidates))
	for _, call := range in.Candidates {
		if call.CreatedAt.Before(from) || call.CreatedAt.After(in.JobTime) {
			continue
		}
		inRange = append(inRange, call)
	}
	if len(inRange) == 0 {
		return jobs.MatchResult{
			Reason:  ReasonNoCallInRange,
			Details: map[string]any{"source": in.Source, "candidates": len(in.Candidates), "windowMinutes": int(m.window.Minutes())},
		}, nil
	}

	// newest first; longer calls win ties
	sort.SliceStable(inRange, func(i, j int) bool {
		a, b := inRange[i], inRange[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Duration > b.Duration
	})

	for _, call := range inRange {
		if in.IsLinked != nil {
			linked, err := in.IsLinked(ctx, call.ID)
			if err != nil {
				return jobs.MatchResult{}, fmt.Errorf("check call %s: %w", call.ID, err)
			}
			if linked {
				continue
			}
		}
		picked := call
		return jobs.MatchResult{
			Call:   &picked,
			Reason: ReasonMatched,
			Details: map[string]any{
				"source":        in.Source,
				"callId":        call.ID,
				"minutesBefore": int(in.JobTime.Sub(call.CreatedAt).Minutes()),
			},
		}, nil
	}

	return jobs.MatchResult{
		Reason:  ReasonAllLinked,
		Details: map[string]any{"source": in.Source, "inWindow": len(inRange)},
	}, nil
}
