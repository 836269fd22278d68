package jobs

import (
	"strings"
	"time"
)

// mergePolicy decides how an incoming component overwrites an existing one.
type mergePolicy int

const (
	// replaceAll takes every field from the incoming component.
	replaceAll mergePolicy = iota
	// preserveRevenue refreshes status, timestamps, customer, schedule and
	// classification but keeps the existing revenue, creation and completion
	// times and crew.
	preserveRevenue
)

// Combine folds incoming into record. A standalone record is first turned
// into a one-component parent. The component with the same job id is merged
// according to policy, otherwise incoming is appended. Revenue, the combined
// id and the mirrored fields are recomputed afterwards.
func Combine(record *JobRecord, incoming JobComponent, policy mergePolicy, now time.Time) {
	if !record.IsCombined() {
		record.Components = []JobComponent{standaloneComponent(record)}
	}

	if idx := componentIndex(record.Components, incoming.HcpID); idx >= 0 {
		record.Components[idx] = mergeComponent(record.Components[idx], incoming, policy)
	} else {
		record.Components = append(record.Components, incoming)
	}

	record.Revenue = totalRevenue(record.Components)
	if !record.ContainsHcpID(incoming.HcpID) {
		record.HcpID = appendHcpID(record.HcpID, incoming.HcpID)
	}
	mirrorPrimary(record, now)
}

// standaloneComponent synthesizes the single component a standalone record
// stands for.
func standaloneComponent(record *JobRecord) JobComponent {
	return JobComponent{
		HcpID:    record.HcpID,
		Revenue:  record.Revenue,
		Snapshot: record.Snapshot,
	}
}

func componentIndex(components []JobComponent, hcpID string) int {
	for i, c := range components {
		if c.HcpID == hcpID {
			return i
		}
	}
	return -1
}

func mergeComponent(existing, incoming JobComponent, policy mergePolicy) JobComponent {
	if policy == replaceAll {
		return incoming
	}
	merged := existing
	merged.Status = incoming.Status
	merged.UpdatedAt = incoming.UpdatedAt
	merged.Customer = incoming.Customer
	merged.Schedule = incoming.Schedule
	merged.Category = incoming.Category
	merged.Type = incoming.Type
	return merged
}

func totalRevenue(components []JobComponent) int64 {
	var sum int64
	for _, c := range components {
		sum += c.Revenue
	}
	return sum
}

func appendHcpID(combined, hcpID string) string {
	if strings.TrimSpace(combined) == "" {
		return hcpID
	}
	return combined + "," + hcpID
}

// mirrorPrimary copies the primary component's snapshot onto the parent.
// A record without components keeps its own fields.
func mirrorPrimary(record *JobRecord, now time.Time) {
	idx, ok := SelectPrimary(record.Components, now)
	if !ok {
		record.Status = record.Status.Mirrored()
		return
	}
	record.Snapshot = record.Components[idx].Snapshot
	record.Status = record.Status.Mirrored()
}

// cancelJob marks jobID canceled on record and refreshes the mirror.
func cancelJob(record *JobRecord, jobID string, now time.Time) {
	at := now.UTC()
	if !record.IsCombined() {
		record.Status = StatusCanceled
		record.UpdatedAt = &at
		return
	}

	if idx := componentIndex(record.Components, jobID); idx >= 0 {
		record.Components[idx].Status = StatusCanceled
		record.Components[idx].UpdatedAt = &at
	} else {
		record.Components = append(record.Components, JobComponent{
			HcpID:    jobID,
			Snapshot: Snapshot{Status: StatusCanceled, UpdatedAt: &at},
		})
	}
	if !record.ContainsHcpID(jobID) {
		record.HcpID = appendHcpID(record.HcpID, jobID)
	}
	record.Revenue = totalRevenue(record.Components)
	mirrorPrimary(record, now)
}
