// Package webhook receives Housecall Pro job webhooks and manages the API
// keys that authenticate them.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"hcp_job_processor/internal/adapters/storage"
	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/internal/scheduler"
	"hcp_job_processor/platform/logger"

	"github.com/google/uuid"
)

const (
	StatusQueued    = "queued"
	StatusProcessed = "processed"

	archiveContentType = "application/json"
)

// JobProcessor applies job events inline and serves record lookups.
type JobProcessor interface {
	Process(ctx context.Context, job jobs.JobPayload, eventType, jobID string, company jobs.Company) (jobs.Result, error)
	Lookup(ctx context.Context, companyID uuid.UUID, hcpID string) (*jobs.JobRecord, error)
}

// JobEvent is the body Housecall Pro posts for a job lifecycle event.
type JobEvent struct {
	Event string          `json:"event" validate:"max=64"`
	Job   jobs.JobPayload `json:"job"`
}

// Receipt describes what happened to an accepted delivery.
type Receipt struct {
	Status     string      `json:"status"`
	Action     jobs.Action `json:"action,omitempty"`
	RecordID   *uuid.UUID  `json:"recordId,omitempty"`
	CallID     string      `json:"callId,omitempty"`
	ArchiveKey string      `json:"archiveKey,omitempty"`
}

// Service archives deliveries and routes them to the queue or the processor.
type Service struct {
	processor JobProcessor
	enqueuer  scheduler.JobEventEnqueuer
	archive   storage.ObjectStore
	bucket    string
	log       *logger.Logger
	now       func() time.Time
}

// NewService creates a webhook service. A nil enqueuer processes events
// inline; a nil archive skips raw body archiving.
func NewService(processor JobProcessor, enqueuer scheduler.JobEventEnqueuer, archive storage.ObjectStore, bucket string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		processor: processor,
		enqueuer:  enqueuer,
		archive:   archive,
		bucket:    bucket,
		log:       log,
		now:       time.Now,
	}
}

// Receive handles one authenticated delivery for company.
func (s *Service) Receive(ctx context.Context, raw []byte, event JobEvent, company jobs.Company) (Receipt, error) {
	archiveKey := s.archiveBody(ctx, company.ID, event.Job.ID, raw)

	if s.enqueuer != nil {
		err := s.enqueuer.EnqueueJobEvent(ctx, scheduler.JobEventPayload{
			CompanyID:  company.ID.String(),
			Timezone:   company.Timezone,
			JobID:      event.Job.ID,
			EventType:  event.Event,
			Job:        event.Job,
			ArchiveKey: archiveKey,
		})
		if err != nil {
			return Receipt{}, fmt.Errorf("enqueue job event %s: %w", event.Job.ID, err)
		}
		return Receipt{Status: StatusQueued, ArchiveKey: archiveKey}, nil
	}

	result, err := s.processor.Process(ctx, event.Job, event.Event, event.Job.ID, company)
	if err != nil {
		return Receipt{}, err
	}

	receipt := Receipt{
		Status:     StatusProcessed,
		Action:     result.Action,
		CallID:     result.CallID,
		ArchiveKey: archiveKey,
	}
	if result.RecordID != uuid.Nil {
		id := result.RecordID
		receipt.RecordID = &id
	}
	return receipt, nil
}

// Lookup returns the record holding hcpID for company.
func (s *Service) Lookup(ctx context.Context, companyID uuid.UUID, hcpID string) (*jobs.JobRecord, error) {
	return s.processor.Lookup(ctx, companyID, hcpID)
}

// archiveBody stores the raw delivery and returns its key. Archive failures
// never reject a delivery.
func (s *Service) archiveBody(ctx context.Context, companyID uuid.UUID, jobID string, raw []byte) string {
	if s.archive == nil || len(raw) == 0 {
		return ""
	}

	folder := path.Join(companyID.String(), s.now().UTC().Format("2006/01/02"))
	key, err := s.archive.UploadFile(ctx, s.bucket, folder, archiveFileName(jobID), archiveContentType, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		s.log.WithContext(ctx).Warn("webhook archive failed", "job_id", jobID, "error", err)
		return ""
	}
	return key
}

func archiveFileName(jobID string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(jobID))
	if name == "" {
		name = "job"
	}
	return name + ".json"
}
