package jobs

import "strings"

const unknownClassification = "Unknown"

// statusFor derives the component status of an event. created and updated
// follow the HCP work status when it reports a terminal state.
func statusFor(kind EventKind, workStatus string) Status {
	switch kind {
	case EventCanceled, EventDeleted:
		return StatusCanceled
	case EventCompleted:
		return StatusCompleted
	}

	ws := strings.ToLower(strings.TrimSpace(workStatus))
	switch {
	case strings.HasPrefix(ws, "complete"):
		return StatusCompleted
	case strings.HasSuffix(ws, "canceled"), strings.HasSuffix(ws, "cancelled"):
		return StatusCanceled
	case kind == EventCreated:
		return StatusCreated
	default:
		return StatusUpdated
	}
}

// policyFor returns how an event merges into an existing component.
func policyFor(kind EventKind) mergePolicy {
	if kind == EventCanceled {
		return preserveRevenue
	}
	return replaceAll
}

// buildComponent turns a payload and its normalized times into a component.
func buildComponent(jobID string, job JobPayload, times jobTimes, status Status) JobComponent {
	created := times.created
	updated := times.updated

	var revenue int64
	if job.TotalAmount != nil {
		revenue = *job.TotalAmount
	}

	var employees []Employee
	if len(job.AssignedEmployees) > 0 {
		employees = append(employees, job.AssignedEmployees...)
	}

	var customer *Customer
	if job.Customer != nil {
		c := *job.Customer
		customer = &c
	}

	return JobComponent{
		HcpID:   jobID,
		Revenue: revenue,
		Snapshot: Snapshot{
			Status:            status,
			CreatedAt:         &created,
			UpdatedAt:         &updated,
			CompletedAt:       times.completed,
			Schedule:          times.schedule,
			Customer:          customer,
			AssignedEmployees: employees,
			Category:          businessUnitName(job.JobFields),
			Type:              jobTypeName(job.JobFields),
		},
	}
}

func jobTypeName(fields *JobFields) string {
	if fields == nil {
		return unknownClassification
	}
	return refName(fields.JobType)
}

func businessUnitName(fields *JobFields) string {
	if fields == nil {
		return unknownClassification
	}
	return refName(fields.BusinessUnit)
}

func refName(ref *NamedRef) string {
	if ref == nil || strings.TrimSpace(ref.Name) == "" {
		return unknownClassification
	}
	return strings.TrimSpace(ref.Name)
}
