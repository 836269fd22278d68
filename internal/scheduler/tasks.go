package scheduler

import (
	"encoding/json"
	"fmt"

	"hcp_job_processor/internal/jobs"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TaskJobEvent = "hcp.job.event"

// JobEventPayload carries one accepted webhook to the worker.
type JobEventPayload struct {
	CompanyID  string          `json:"companyId"`
	Timezone   string          `json:"timezone,omitempty"`
	JobID      string          `json:"jobId"`
	EventType  string          `json:"eventType"`
	Job        jobs.JobPayload `json:"job"`
	ArchiveKey string          `json:"archiveKey,omitempty"`
}

// Company returns the company the event belongs to.
func (p JobEventPayload) Company() (jobs.Company, error) {
	id, err := uuid.Parse(p.CompanyID)
	if err != nil {
		return jobs.Company{}, fmt.Errorf("invalid company id %q: %w", p.CompanyID, err)
	}
	return jobs.Company{ID: id, Timezone: p.Timezone}, nil
}

func NewJobEventTask(payload JobEventPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskJobEvent, data), nil
}

func ParseJobEventPayload(task *asynq.Task) (JobEventPayload, error) {
	var payload JobEventPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return JobEventPayload{}, err
	}
	return payload, nil
}
