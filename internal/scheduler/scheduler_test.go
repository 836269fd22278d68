package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"hcp_job_processor/internal/jobs"
	"hcp_job_processor/platform/apperr"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type processCall struct {
	job       jobs.JobPayload
	eventType string
	jobID     string
	company   jobs.Company
}

type stubProcessor struct {
	calls []processCall
	err   error
}

func (s *stubProcessor) Process(_ context.Context, job jobs.JobPayload, eventType, jobID string, company jobs.Company) (jobs.Result, error) {
	s.calls = append(s.calls, processCall{job: job, eventType: eventType, jobID: jobID, company: company})
	if s.err != nil {
		return jobs.Result{}, s.err
	}
	return jobs.Result{Action: jobs.ActionCreatedMatched, HcpID: jobID}, nil
}

func TestJobEventTaskRoundTrip(t *testing.T) {
	companyID := uuid.New()
	amount := int64(12500)
	payload := JobEventPayload{
		CompanyID: companyID.String(),
		Timezone:  "America/Chicago",
		JobID:     "job_1",
		EventType: "job.created",
		Job:       jobs.JobPayload{ID: "job_1", CreatedAt: "2024-03-01T10:00:00Z", TotalAmount: &amount},
	}

	task, err := NewJobEventTask(payload)
	require.NoError(t, err)
	assert.Equal(t, TaskJobEvent, task.Type())

	decoded, err := ParseJobEventPayload(task)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)

	company, err := decoded.Company()
	require.NoError(t, err)
	assert.Equal(t, jobs.Company{ID: companyID, Timezone: "America/Chicago"}, company)
}

func TestHandlerProcessesEvent(t *testing.T) {
	proc := &stubProcessor{}
	handler := NewJobEventHandler(proc, nil)
	companyID := uuid.New()

	task, err := NewJobEventTask(JobEventPayload{CompanyID: companyID.String(), JobID: "job_1", EventType: "job.updated"})
	require.NoError(t, err)

	require.NoError(t, handler.ProcessTask(context.Background(), task))
	require.Len(t, proc.calls, 1)
	assert.Equal(t, "job_1", proc.calls[0].jobID)
	assert.Equal(t, "job.updated", proc.calls[0].eventType)
	assert.Equal(t, companyID, proc.calls[0].company.ID)
}

func TestHandlerSkipsRetryForBadInput(t *testing.T) {
	handler := NewJobEventHandler(&stubProcessor{}, nil)

	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskJobEvent, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewJobEventTask(JobEventPayload{CompanyID: "not-a-uuid", JobID: "job_1"})
	require.NoError(t, err)
	assert.ErrorIs(t, handler.ProcessTask(context.Background(), task), asynq.SkipRetry)
}

func TestHandlerSkipsRetryForValidationErrors(t *testing.T) {
	proc := &stubProcessor{err: apperr.Validation("invalid created_at")}
	handler := NewJobEventHandler(proc, nil)

	task, err := NewJobEventTask(JobEventPayload{CompanyID: uuid.NewString(), JobID: "job_1"})
	require.NoError(t, err)

	assert.ErrorIs(t, handler.ProcessTask(context.Background(), task), asynq.SkipRetry)
}

func TestHandlerRetriesStoreErrors(t *testing.T) {
	boom := errors.New("connection reset")
	handler := NewJobEventHandler(&stubProcessor{err: boom}, nil)

	task, err := NewJobEventTask(JobEventPayload{CompanyID: uuid.NewString(), JobID: "job_1"})
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), task)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

type recordingPruner struct {
	cutoffs []time.Time
	bucket  string
}

func (r *recordingPruner) DeleteOlderThan(_ context.Context, bucket, _ string, cutoff time.Time) (int, error) {
	r.bucket = bucket
	r.cutoffs = append(r.cutoffs, cutoff)
	return 3, nil
}

func TestArchiveCleanupUsesRetention(t *testing.T) {
	pruner := &recordingPruner{}
	cleanup := NewArchiveCleanup(pruner, "archive", nil, time.Hour, 48*time.Hour)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	cleanup.now = func() time.Time { return now }

	cleanup.cleanup(context.Background())

	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), pruner.cutoffs[0])
	assert.Equal(t, "archive", pruner.bucket)
}

func TestArchiveCleanupRunStopsOnCancel(t *testing.T) {
	pruner := &recordingPruner{}
	cleanup := NewArchiveCleanup(pruner, "archive", nil, time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		cleanup.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop")
	}
	assert.Len(t, pruner.cutoffs, 1)
}
