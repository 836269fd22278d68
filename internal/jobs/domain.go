// Package jobs reconciles Housecall Pro job lifecycle events with inbound
// CallRail calls. It links each job to the call that produced it, folds
// related jobs into one parent record, and keeps the parent's mirrored
// fields in sync with its primary component.
package jobs

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"hcp_job_processor/platform/apperr"

	"github.com/google/uuid"
)

// EventKind is the closed set of job lifecycle events the engine handles.
type EventKind string

const (
	EventCreated   EventKind = "created"
	EventUpdated   EventKind = "updated"
	EventCanceled  EventKind = "canceled"
	EventCompleted EventKind = "completed"
	EventDeleted   EventKind = "deleted"
)

// AllEventKinds lists every kind the dispatcher must handle.
var AllEventKinds = []EventKind{EventCreated, EventUpdated, EventCanceled, EventCompleted, EventDeleted}

// ParseEventKind maps a webhook event tag ("job.created", "cancelled", ...)
// onto an EventKind. A blank tag is an upsert and maps to EventUpdated.
func ParseEventKind(raw string) (EventKind, error) {
	tag := strings.ToLower(strings.TrimSpace(raw))
	tag = strings.TrimPrefix(tag, "job.")

	switch tag {
	case "":
		return EventUpdated, nil
	case "created":
		return EventCreated, nil
	case "updated":
		return EventUpdated, nil
	case "canceled", "cancelled":
		return EventCanceled, nil
	case "completed":
		return EventCompleted, nil
	case "deleted":
		return EventDeleted, nil
	}

	return "", apperr.Wrap(apperr.KindValidation, fmt.Sprintf("unsupported event type %q", raw), ErrUnknownEventType).
		WithOp("jobs.ParseEventKind")
}

// Status is a job's lifecycle status. StatusUpdated is an internal tier that
// is stored and mirrored as StatusCreated.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Mirrored returns the status as it appears on a parent record.
func (s Status) Mirrored() Status {
	if s == StatusUpdated {
		return StatusCreated
	}
	return s
}

// Company identifies the tenant an event belongs to.
type Company struct {
	ID       uuid.UUID `json:"id"`
	Timezone string    `json:"timezone"`
}

// Location resolves the company timezone, defaulting to UTC.
func (c Company) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Event is one job lifecycle delivery.
type Event struct {
	Kind    EventKind
	JobID   string
	Company Company
	Job     JobPayload
}

// JobPayload is the Housecall Pro job body carried by a webhook.
// Timestamps stay raw strings until NormalizeDate has validated them.
type JobPayload struct {
	ID                string           `json:"id" validate:"notblank"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"updated_at"`
	CompletedAt       string           `json:"completed_at"`
	Customer          *Customer        `json:"customer"`
	Address           *Address         `json:"address"`
	WorkStatus        string           `json:"work_status"`
	TotalAmount       *int64           `json:"total_amount"`
	AssignedEmployees []Employee       `json:"assigned_employees"`
	Schedule          *PayloadSchedule `json:"schedule"`
	JobFields         *JobFields       `json:"job_fields"`
	LeadSource        string           `json:"lead_source"`
}

// Customer is the customer snapshot stored on components and records.
type Customer struct {
	ID           string `json:"id,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email,omitempty"`
	MobileNumber string `json:"mobile_number,omitempty"`
	HomeNumber   string `json:"home_number,omitempty"`
	WorkNumber   string `json:"work_number,omitempty"`
}

// Address is the service address of a job.
type Address struct {
	Street      string `json:"street,omitempty"`
	StreetLine2 string `json:"street_line_2,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	Zip         string `json:"zip,omitempty"`
	Country     string `json:"country,omitempty"`
}

// IsEmpty reports whether the address has nothing to geocode.
func (a *Address) IsEmpty() bool {
	return a == nil || (strings.TrimSpace(a.Street) == "" && strings.TrimSpace(a.City) == "" && strings.TrimSpace(a.Zip) == "")
}

// Employee is an assigned technician.
type Employee struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// PayloadSchedule is the raw schedule block of a job payload.
type PayloadSchedule struct {
	ScheduledStart string `json:"scheduled_start"`
	ScheduledEnd   string `json:"scheduled_end"`
}

// NamedRef is an HCP reference carrying a display name.
type NamedRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// JobFields carries the job type and business unit of a job.
type JobFields struct {
	JobType      *NamedRef `json:"job_type"`
	BusinessUnit *NamedRef `json:"business_unit"`
}

// Schedule is the parsed schedule of a component.
type Schedule struct {
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd   *time.Time `json:"scheduled_end,omitempty"`
}

// start returns the scheduled start, if any.
func (s *Schedule) start() (time.Time, bool) {
	if s == nil || s.ScheduledStart == nil || s.ScheduledStart.IsZero() {
		return time.Time{}, false
	}
	return *s.ScheduledStart, true
}

// CallRecord is an inbound call as recorded by the call store.
type CallRecord struct {
	ID          string    `json:"id"`
	CompanyID   uuid.UUID `json:"companyId"`
	PhoneNumber string    `json:"customerPhoneNumber"`
	CreatedAt   time.Time `json:"createdAt"`
	Tags        []string  `json:"tags"`
	Duration    int       `json:"duration"`
	Source      string    `json:"source,omitempty"`
}

// Snapshot is the set of fields a parent record mirrors from its primary component.
type Snapshot struct {
	Status            Status     `json:"jobStatus"`
	CreatedAt         *time.Time `json:"created_at,omitempty"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	Schedule          *Schedule  `json:"schedule,omitempty"`
	Customer          *Customer  `json:"customer,omitempty"`
	AssignedEmployees []Employee `json:"assigned_employees,omitempty"`
	Category          string     `json:"jobCategory,omitempty"`
	Type              string     `json:"jobType,omitempty"`
}

// JobComponent is one external job's lifecycle snapshot inside a parent record.
type JobComponent struct {
	HcpID   string `json:"hcpId"`
	Revenue int64  `json:"revenue"`
	Snapshot
}

// JobRecord is the persisted parent record for one or more related jobs.
// A record without components is standalone.
type JobRecord struct {
	ID           uuid.UUID          `json:"id"`
	HcpID        string             `json:"hcpId"`
	CompanyID    uuid.UUID          `json:"companyId"`
	CallID       *string            `json:"callrailCustomerId,omitempty"`
	MatchReason  string             `json:"matchReason,omitempty"`
	MatchDetails map[string]any     `json:"matchDetails,omitempty"`
	Components   []JobComponent     `json:"jobComponents,omitempty"`
	Revenue      int64              `json:"revenue"`
	Average      *HistoricalAverage `json:"average,omitempty"`
	Location     *Location          `json:"location,omitempty"`
	Address      *Address           `json:"address,omitempty"`
	LeadSource   string             `json:"leadSource,omitempty"`
	Snapshot
}

// IsCombined reports whether the record carries a component list.
func (r *JobRecord) IsCombined() bool {
	return len(r.Components) > 0
}

// HcpIDs splits the combined id into its constituent job ids.
func (r *JobRecord) HcpIDs() []string {
	parts := strings.Split(r.HcpID, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// ContainsHcpID reports whether jobID is part of the combined id.
func (r *JobRecord) ContainsHcpID(jobID string) bool {
	for _, id := range r.HcpIDs() {
		if id == jobID {
			return true
		}
	}
	return false
}

// LinkedCallID returns the linked call id or "".
func (r *JobRecord) LinkedCallID() string {
	if r == nil || r.CallID == nil {
		return ""
	}
	return *r.CallID
}

// Location is a geocoded point.
type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

// HistoricalAverage is a per-company revenue reference snapshot.
type HistoricalAverage struct {
	CompanyID             uuid.UUID          `json:"companyId"`
	Date                  time.Time          `json:"date"`
	OverallAverageRevenue float64            `json:"overallAverageRevenue"`
	SourceAverages        map[string]float64 `json:"sourceAverages,omitempty"`
	SubSourceAverages     map[string]float64 `json:"subSourceAverages,omitempty"`
}

// Estimate is the subset of an HCP estimate the engine reads.
type Estimate struct {
	ID         uuid.UUID
	EstimateID string
	CompanyID  uuid.UUID
	CallID     string
	CreatedAt  time.Time
}

// MatchResult is the output of a CallMatcher.
type MatchResult struct {
	Call    *CallRecord
	Reason  string
	Details map[string]any
}
