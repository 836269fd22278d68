package jobs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"hcp_job_processor/platform/apperr"

	"github.com/google/uuid"
)

// candidateWindow is the half-width of the call search window around a job.
const candidateWindow = 31 * 24 * time.Hour

// CandidateRetriever collects the calls that could have produced a job.
type CandidateRetriever struct {
	calls CallStore
}

// NewCandidateRetriever wires the retriever to a call store.
func NewCandidateRetriever(calls CallStore) *CandidateRetriever {
	return &CandidateRetriever{calls: calls}
}

// Retrieve returns the company's calls from any of phones created inside
// [ref-31d, ref+31d). Phones are queried in order and a call found through
// more than one phone is kept once, at its first position.
func (r *CandidateRetriever) Retrieve(ctx context.Context, companyID uuid.UUID, phones []string, ref time.Time) ([]CallRecord, error) {
	if ref.IsZero() {
		return nil, apperr.Wrap(apperr.KindValidation, "call window has no reference time", ErrInvalidTimestamp).
			WithOp("jobs.CandidateRetriever.Retrieve")
	}

	from := ref.Add(-candidateWindow)
	to := ref.Add(candidateWindow)

	seen := make(map[string]struct{})
	candidates := make([]CallRecord, 0)
	for _, phone := range phones {
		calls, err := r.calls.FindCalls(ctx, CallFilter{
			CompanyID:   companyID,
			PhoneNumber: phone,
			From:        from,
			To:          to,
		})
		if err != nil {
			return nil, fmt.Errorf("find calls for %s: %w", phone, err)
		}
		for _, call := range calls {
			if call.CreatedAt.Before(from) || !call.CreatedAt.Before(to) {
				continue
			}
			if _, dup := seen[call.ID]; dup {
				continue
			}
			seen[call.ID] = struct{}{}
			candidates = append(candidates, call)
		}
	}
	return candidates, nil
}

// customerPhones returns the normalized, de-duplicated lookup numbers of a
// customer: mobile first, then home, then work.
func customerPhones(customer *Customer, normalize PhoneNormalizer) []string {
	if customer == nil {
		return nil
	}
	var phones []string
	for _, raw := range []string{customer.MobileNumber, customer.HomeNumber, customer.WorkNumber} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		phone := raw
		if normalize != nil {
			phone = normalize(raw)
		}
		if phone == "" || containsString(phones, phone) {
			continue
		}
		phones = append(phones, phone)
	}
	return phones
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
