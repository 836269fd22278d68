package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// linkedJobLookback bounds how old a linked record may be relative to the job.
const linkedJobLookback = 30 * 24 * time.Hour

// LinkedJobResolver finds an existing record to fold a job into when no
// direct call match exists.
type LinkedJobResolver struct {
	jobs      JobStore
	qualified tagSet
}

// NewLinkedJobResolver returns a resolver that prefers calls carrying any of
// qualifiedTags.
func NewLinkedJobResolver(jobs JobStore, qualifiedTags []string) *LinkedJobResolver {
	return &LinkedJobResolver{jobs: jobs, qualified: newTagSet(qualifiedTags)}
}

// Resolve walks qualified candidates then the rest, each newest first, and
// returns the first linked record created within 30 days before jobTime.
// Qualification outranks recency across the two groups.
func (r *LinkedJobResolver) Resolve(ctx context.Context, companyID uuid.UUID, candidates []CallRecord, jobTime time.Time) (*JobRecord, error) {
	qualified, other := r.partition(candidates)

	for _, group := range [][]CallRecord{qualified, other} {
		for _, call := range group {
			record, err := r.jobs.FindByCallID(ctx, companyID, call.ID)
			if err != nil {
				return nil, fmt.Errorf("find job linked to call %s: %w", call.ID, err)
			}
			if record != nil && withinLookback(record, jobTime) {
				return record, nil
			}
		}
	}
	return nil, nil
}

func (r *LinkedJobResolver) partition(candidates []CallRecord) (qualified, other []CallRecord) {
	for _, call := range candidates {
		if r.qualified.matchesAny(call.Tags) {
			qualified = append(qualified, call)
		} else {
			other = append(other, call)
		}
	}
	newestFirst(qualified)
	newestFirst(other)
	return qualified, other
}

func newestFirst(calls []CallRecord) {
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].CreatedAt.After(calls[j].CreatedAt)
	})
}

func withinLookback(record *JobRecord, jobTime time.Time) bool {
	if record.CreatedAt == nil {
		return false
	}
	age := jobTime.Sub(*record.CreatedAt)
	return age >= 0 && age <= linkedJobLookback
}
