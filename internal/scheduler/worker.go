package scheduler

import (
	"context"
	"fmt"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/apperr"
	"hcp_job_processor/platform/config"
	"hcp_job_processor/platform/logger"

	"github.com/hibiken/asynq"
)

// EventProcessor applies one job lifecycle event.
type EventProcessor interface {
	Process(ctx context.Context, job jobs.JobPayload, eventType, jobID string, company jobs.Company) (jobs.Result, error)
}

// JobEventHandler runs queued job events through the processor.
type JobEventHandler struct {
	processor EventProcessor
	log       *logger.Logger
}

func NewJobEventHandler(processor EventProcessor, log *logger.Logger) *JobEventHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &JobEventHandler{processor: processor, log: log}
}

// ProcessTask implements asynq.Handler. Malformed payloads and permanent
// failures are not retried.
func (h *JobEventHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseJobEventPayload(task)
	if err != nil {
		return fmt.Errorf("decode job event: %v: %w", err, asynq.SkipRetry)
	}

	company, err := payload.Company()
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	result, err := h.processor.Process(ctx, payload.Job, payload.EventType, payload.JobID, company)
	if err != nil {
		if apperr.Permanent(err) {
			h.log.WithContext(ctx).Warn("job event rejected",
				"job_id", payload.JobID,
				"event_type", payload.EventType,
				"archive_key", payload.ArchiveKey,
				"error", err,
			)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	h.log.WithContext(ctx).Debug("job event processed",
		"job_id", payload.JobID,
		"action", string(result.Action),
		"record_id", result.RecordID.String(),
	)
	return nil
}

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, handler *JobEventHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.Handle(TaskJobEvent, handler)

	return &Worker{
		server: server,
		mux:    mux,
		log:    log,
	}, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("job event worker stopped", "error", err)
	}
}
