package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hcp_job_processor/platform/apperr"
	"hcp_job_processor/platform/keylock"
	"hcp_job_processor/platform/logger"

	"github.com/google/uuid"
)

// Action names what a processed event did to the store.
type Action string

const (
	ActionCanceled         Action = "canceled"
	ActionCancelIgnored    Action = "cancel_ignored"
	ActionCombinedExisting Action = "combined_existing"
	ActionCreatedMatched   Action = "created_matched"
	ActionCombinedLinked   Action = "combined_linked"
	ActionCreatedUnlinked  Action = "created_unlinked"
)

const (
	// MatchReasonNoMatch marks a record created without any call.
	MatchReasonNoMatch = "no_match"

	defaultCallSource = "housecall_pro"
)

// Result reports the outcome of Process.
type Result struct {
	Action   Action
	RecordID uuid.UUID
	HcpID    string
	CallID   string
}

// handlerFunc handles one event kind.
type handlerFunc func(ctx context.Context, ev Event) (Result, error)

// Deps are the collaborators of a Processor. Geocoder is optional; Locker
// defaults to an in-process keyed mutex.
type Deps struct {
	Calls          CallStore
	Jobs           JobStore
	Estimates      EstimateStore
	Averages       HistoricalAverageStore
	Matcher        CallMatcher
	RevenueLoss    RevenueLossCalculator
	Geocoder       Geocoder
	NormalizePhone PhoneNormalizer
	Locker         keylock.Locker
	Log            *logger.Logger
}

// Options tune the reconciliation rules.
type Options struct {
	QualifiedTags     []string
	ExcludedTags      []string
	LaterQualifiedTag string
	CallSource        string
	Now               func() time.Time
}

// Processor reconciles job lifecycle events. Events for the same company
// and job are serialized, and so are writes to one parent record, since
// sibling jobs fold into the same record.
type Processor struct {
	jobs           JobStore
	estimates      EstimateStore
	averages       HistoricalAverageStore
	matcher        CallMatcher
	revenueLoss    RevenueLossCalculator
	geocoder       Geocoder
	normalizePhone PhoneNormalizer
	locker         keylock.Locker
	log            *logger.Logger

	retriever *CandidateRetriever
	resolver  *LinkedJobResolver
	tagger    *TagReconciler
	source    string
	now       func() time.Time

	handlers map[EventKind]handlerFunc
}

// NewProcessor validates deps and builds the dispatch table.
func NewProcessor(deps Deps, opts Options) (*Processor, error) {
	switch {
	case deps.Calls == nil:
		return nil, errors.New("jobs: call store is required")
	case deps.Jobs == nil:
		return nil, errors.New("jobs: job store is required")
	case deps.Estimates == nil:
		return nil, errors.New("jobs: estimate store is required")
	case deps.Averages == nil:
		return nil, errors.New("jobs: historical average store is required")
	case deps.Matcher == nil:
		return nil, errors.New("jobs: call matcher is required")
	case deps.RevenueLoss == nil:
		return nil, errors.New("jobs: revenue loss calculator is required")
	case strings.TrimSpace(opts.LaterQualifiedTag) == "":
		return nil, errors.New("jobs: later qualified tag is required")
	}

	p := &Processor{
		jobs:           deps.Jobs,
		estimates:      deps.Estimates,
		averages:       deps.Averages,
		matcher:        deps.Matcher,
		revenueLoss:    deps.RevenueLoss,
		geocoder:       deps.Geocoder,
		normalizePhone: deps.NormalizePhone,
		locker:         deps.Locker,
		log:            deps.Log,
		retriever:      NewCandidateRetriever(deps.Calls),
		resolver:       NewLinkedJobResolver(deps.Jobs, opts.QualifiedTags),
		tagger:         NewTagReconciler(deps.Calls, opts.ExcludedTags, opts.LaterQualifiedTag),
		source:         opts.CallSource,
		now:            opts.Now,
	}
	if p.locker == nil {
		p.locker = keylock.NewLocal()
	}
	if p.log == nil {
		p.log = logger.Nop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.source == "" {
		p.source = defaultCallSource
	}

	p.handlers = map[EventKind]handlerFunc{
		EventCreated:   p.reconcile,
		EventUpdated:   p.reconcile,
		EventCanceled:  p.reconcile,
		EventCompleted: p.reconcile,
		EventDeleted:   p.handleDeleted,
	}
	for _, kind := range AllEventKinds {
		if _, ok := p.handlers[kind]; !ok {
			return nil, fmt.Errorf("jobs: no handler for event kind %q", kind)
		}
	}
	return p, nil
}

// Process applies one job lifecycle event for company. eventType is the raw
// webhook tag; a blank jobID falls back to the payload id.
func (p *Processor) Process(ctx context.Context, job JobPayload, eventType, jobID string, company Company) (Result, error) {
	kind, err := ParseEventKind(eventType)
	if err != nil {
		return Result{}, err
	}

	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		jobID = strings.TrimSpace(job.ID)
	}
	if jobID == "" {
		return Result{}, apperr.Validation("job id is required").WithOp("jobs.Process")
	}
	if company.ID == uuid.Nil {
		return Result{}, apperr.Validation("company id is required").WithOp("jobs.Process")
	}

	unlock, err := p.locker.Lock(ctx, lockKey(company.ID, jobID))
	if err != nil {
		return Result{}, fmt.Errorf("lock job %s: %w", jobID, err)
	}
	defer unlock()

	ev := Event{Kind: kind, JobID: jobID, Company: company, Job: job}
	result, err := p.handlers[kind](ctx, ev)
	if err != nil {
		return Result{}, err
	}

	p.log.WithContext(ctx).JobReconciled(string(kind), jobID, company.ID.String(), string(result.Action), result.CallID)
	return result, nil
}

func lockKey(companyID uuid.UUID, jobID string) string {
	return companyID.String() + ":" + jobID
}

func recordLockKey(id uuid.UUID) string {
	return "record:" + id.String()
}

// lockRecord locks the parent record id and re-reads it under the lock.
// Record locks are always taken after the job lock.
func (p *Processor) lockRecord(ctx context.Context, companyID, id uuid.UUID) (*JobRecord, keylock.Unlock, error) {
	unlock, err := p.locker.Lock(ctx, recordLockKey(id))
	if err != nil {
		return nil, nil, fmt.Errorf("lock record %s: %w", id, err)
	}
	record, err := p.jobs.FindByID(ctx, companyID, id)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("reload record %s: %w", id, err)
	}
	if record == nil {
		unlock()
		return nil, nil, apperr.Wrap(apperr.KindNotFound, "job record vanished", ErrJobNotFound).WithOp("jobs.lockRecord")
	}
	return record, unlock, nil
}

// handleDeleted cancels the job inside its record. Nothing else of the
// pipeline runs for deletions.
func (p *Processor) handleDeleted(ctx context.Context, ev Event) (Result, error) {
	found, err := p.locate(ctx, ev.Company.ID, ev.JobID)
	if err != nil {
		return Result{}, err
	}

	if found == nil {
		p.log.WithContext(ctx).Info("delete for unknown job ignored", "job_id", ev.JobID)
		if err := p.calculateRevenueLoss(ctx, ev, StatusCanceled, 0, nil); err != nil {
			return Result{}, err
		}
		return Result{Action: ActionCancelIgnored, HcpID: ev.JobID}, nil
	}

	record, unlock, err := p.lockRecord(ctx, ev.Company.ID, found.ID)
	if err != nil {
		return Result{}, err
	}
	cancelJob(record, ev.JobID, p.now())
	err = p.jobs.Update(ctx, *record)
	unlock()
	if err != nil {
		return Result{}, fmt.Errorf("update canceled job %s: %w", ev.JobID, err)
	}

	revenue := jobRevenue(record, ev.JobID, 0)
	if err := p.calculateRevenueLoss(ctx, ev, StatusCanceled, revenue, record); err != nil {
		return Result{}, err
	}
	return resultFor(ActionCanceled, record), nil
}

// reconcile runs the full pipeline for created, updated, canceled and
// completed events.
func (p *Processor) reconcile(ctx context.Context, ev Event) (Result, error) {
	now := p.now()
	times, err := normalizeTimes(ev.Job, now)
	if err != nil {
		return Result{}, err
	}
	component := buildComponent(ev.JobID, ev.Job, times, statusFor(ev.Kind, ev.Job.WorkStatus))

	phones := customerPhones(ev.Job.Customer, p.normalizePhone)
	candidates, err := p.retriever.Retrieve(ctx, ev.Company.ID, phones, times.created)
	if err != nil {
		return Result{}, err
	}

	match, err := p.matcher.Match(ctx, MatchInput{
		Candidates: candidates,
		JobTime:    times.created,
		IsLinked:   p.isLinked(ev.Company.ID),
		Source:     p.source,
		JobID:      ev.JobID,
	})
	if err != nil {
		return Result{}, fmt.Errorf("match call for job %s: %w", ev.JobID, err)
	}
	match.Call = copyCall(match.Call)

	average, err := p.historicalAverage(ctx, ev.Company, times.created)
	if err != nil {
		return Result{}, err
	}

	existing, err := p.locate(ctx, ev.Company.ID, ev.JobID)
	if err != nil {
		return Result{}, err
	}

	var (
		result Result
		record *JobRecord
	)
	switch {
	case existing != nil:
		record, result, err = p.combineExisting(ctx, ev, existing.ID, component, match, now)
	case match.Call != nil:
		record, result, err = p.createMatched(ctx, ev, component, match, average)
	default:
		record, result, err = p.resolveUnmatched(ctx, ev, component, candidates, match, average, times.created, now)
	}
	if err != nil {
		return Result{}, err
	}

	if err := p.tagger.MarkLaterQualified(ctx, result.CallID); err != nil {
		return Result{}, fmt.Errorf("tag call %s: %w", result.CallID, err)
	}
	revenue := jobRevenue(record, ev.JobID, component.Revenue)
	if err := p.calculateRevenueLoss(ctx, ev, component.Status, revenue, record); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (p *Processor) combineExisting(ctx context.Context, ev Event, id uuid.UUID, component JobComponent, match MatchResult, now time.Time) (*JobRecord, Result, error) {
	record, unlock, err := p.lockRecord(ctx, ev.Company.ID, id)
	if err != nil {
		return nil, Result{}, err
	}
	defer unlock()

	Combine(record, component, policyFor(ev.Kind), now)
	if record.CallID == nil && match.Call != nil {
		linkCall(record, match)
	}
	if err := p.jobs.Update(ctx, *record); err != nil {
		return nil, Result{}, fmt.Errorf("update job %s: %w", ev.JobID, err)
	}
	return record, resultFor(ActionCombinedExisting, record), nil
}

func (p *Processor) createMatched(ctx context.Context, ev Event, component JobComponent, match MatchResult, average *HistoricalAverage) (*JobRecord, Result, error) {
	record := p.newRecord(ctx, ev, component, average)
	linkCall(&record, match)

	inserted, err := p.jobs.Insert(ctx, record)
	if err != nil {
		return nil, Result{}, fmt.Errorf("insert job %s: %w", ev.JobID, err)
	}
	return &inserted, resultFor(ActionCreatedMatched, &inserted), nil
}

func (p *Processor) resolveUnmatched(ctx context.Context, ev Event, component JobComponent, candidates []CallRecord, match MatchResult, average *HistoricalAverage, jobTime, now time.Time) (*JobRecord, Result, error) {
	linked, err := p.resolver.Resolve(ctx, ev.Company.ID, candidates, jobTime)
	if err != nil {
		return nil, Result{}, err
	}

	if linked != nil {
		record, unlock, err := p.lockRecord(ctx, ev.Company.ID, linked.ID)
		if err != nil {
			return nil, Result{}, err
		}
		defer unlock()

		Combine(record, component, policyFor(ev.Kind), now)
		if err := p.jobs.Update(ctx, *record); err != nil {
			return nil, Result{}, fmt.Errorf("update linked job for %s: %w", ev.JobID, err)
		}
		return record, resultFor(ActionCombinedLinked, record), nil
	}

	record := p.newRecord(ctx, ev, component, average)
	record.MatchReason = MatchReasonNoMatch
	record.MatchDetails = noMatchDetails(candidates, match)

	inserted, err := p.jobs.Insert(ctx, record)
	if err != nil {
		return nil, Result{}, fmt.Errorf("insert unlinked job %s: %w", ev.JobID, err)
	}
	return &inserted, resultFor(ActionCreatedUnlinked, &inserted), nil
}

// newRecord builds a standalone record for one component.
func (p *Processor) newRecord(ctx context.Context, ev Event, component JobComponent, average *HistoricalAverage) JobRecord {
	record := JobRecord{
		ID:         uuid.New(),
		HcpID:      ev.JobID,
		CompanyID:  ev.Company.ID,
		Revenue:    component.Revenue,
		Average:    average,
		LeadSource: strings.TrimSpace(ev.Job.LeadSource),
		Snapshot:   component.Snapshot,
	}
	record.Status = record.Status.Mirrored()
	if ev.Job.Address != nil {
		address := *ev.Job.Address
		record.Address = &address
	}
	record.Location = p.geocode(ctx, ev.Job.Address)
	return record
}

func (p *Processor) geocode(ctx context.Context, address *Address) *Location {
	if p.geocoder == nil || address.IsEmpty() {
		return nil
	}
	loc, err := p.geocoder.Geocode(ctx, *address)
	if err != nil {
		p.log.WithContext(ctx).Warn("geocode failed", "error", err)
		return nil
	}
	return loc
}

// Lookup returns the record holding hcpID, matched exactly or as a component.
func (p *Processor) Lookup(ctx context.Context, companyID uuid.UUID, hcpID string) (*JobRecord, error) {
	hcpID = strings.TrimSpace(hcpID)
	if hcpID == "" {
		return nil, apperr.Validation("job id is required").WithOp("jobs.Lookup")
	}
	record, err := p.locate(ctx, companyID, hcpID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperr.Wrap(apperr.KindNotFound, "job not found", ErrJobNotFound).WithOp("jobs.Lookup")
	}
	return record, nil
}

// locate finds the record holding jobID: exact id first, then any record
// whose combined id or components contain it.
func (p *Processor) locate(ctx context.Context, companyID uuid.UUID, jobID string) (*JobRecord, error) {
	record, err := p.jobs.FindByHcpID(ctx, companyID, jobID)
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", jobID, err)
	}
	if record != nil {
		return record, nil
	}
	record, err = p.jobs.FindContaining(ctx, companyID, jobID)
	if err != nil {
		return nil, fmt.Errorf("find record containing job %s: %w", jobID, err)
	}
	return record, nil
}

// historicalAverage returns the snapshot for the job's creation day in the
// company timezone, or the latest snapshot when that day has none.
func (p *Processor) historicalAverage(ctx context.Context, company Company, created time.Time) (*HistoricalAverage, error) {
	local := created.In(company.Location())
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)

	average, err := p.averages.FindExact(ctx, company.ID, day)
	if err != nil {
		return nil, fmt.Errorf("find historical average: %w", err)
	}
	if average != nil {
		return average, nil
	}
	average, err = p.averages.FindMostRecent(ctx, company.ID)
	if err != nil {
		return nil, fmt.Errorf("find latest historical average: %w", err)
	}
	return average, nil
}

// isLinked reports whether a call already backs a job or an estimate.
func (p *Processor) isLinked(companyID uuid.UUID) LinkedFunc {
	return func(ctx context.Context, callID string) (bool, error) {
		record, err := p.jobs.FindByCallID(ctx, companyID, callID)
		if err != nil {
			return false, err
		}
		if record != nil {
			return true, nil
		}
		estimate, err := p.estimates.FindByCallID(ctx, companyID, callID)
		if err != nil {
			return false, err
		}
		return estimate != nil, nil
	}
}

func (p *Processor) calculateRevenueLoss(ctx context.Context, ev Event, status Status, revenue int64, record *JobRecord) error {
	err := p.revenueLoss.CalculateLostRevenue(ctx, RevenueLossInput{
		JobID:     ev.JobID,
		CompanyID: ev.Company.ID,
		Status:    status,
		Revenue:   revenue,
		CallID:    record.LinkedCallID(),
		Record:    record,
	})
	if err != nil {
		return fmt.Errorf("calculate lost revenue for %s: %w", ev.JobID, err)
	}
	return nil
}

// jobRevenue is the stored revenue of jobID inside record.
func jobRevenue(record *JobRecord, jobID string, fallback int64) int64 {
	if record == nil {
		return fallback
	}
	if idx := componentIndex(record.Components, jobID); idx >= 0 {
		return record.Components[idx].Revenue
	}
	if !record.IsCombined() {
		return record.Revenue
	}
	return fallback
}

func linkCall(record *JobRecord, match MatchResult) {
	if match.Call == nil {
		return
	}
	id := match.Call.ID
	record.CallID = &id
	record.MatchReason = match.Reason
	record.MatchDetails = match.Details
}

func noMatchDetails(candidates []CallRecord, match MatchResult) map[string]any {
	details := map[string]any{"callsFound": len(candidates)}
	if len(candidates) == 0 {
		details["reason"] = "zero_calls_found"
		return details
	}
	details["reason"] = match.Reason
	if len(match.Details) > 0 {
		details["matcher"] = match.Details
	}
	return details
}

func copyCall(call *CallRecord) *CallRecord {
	if call == nil {
		return nil
	}
	c := *call
	c.Tags = append([]string(nil), call.Tags...)
	return &c
}

func resultFor(action Action, record *JobRecord) Result {
	return Result{
		Action:   action,
		RecordID: record.ID,
		HcpID:    record.HcpID,
		CallID:   record.LinkedCallID(),
	}
}
