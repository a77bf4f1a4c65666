package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventKindJob         EventKind = "job"
	EventKindBreak       EventKind = "break"
	EventKindTravel      EventKind = "travel"
	EventKindMaintenance EventKind = "maintenance"
	EventKindMeeting     EventKind = "meeting"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventKindJob, EventKindBreak, EventKindTravel, EventKindMaintenance, EventKindMeeting:
		return true
	}
	return false
}

type EventStatus string

const (
	EventStatusPending    EventStatus = "pending"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusSkipped    EventStatus = "skipped"
)

func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusInProgress, EventStatusCompleted, EventStatusSkipped:
		return true
	}
	return false
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type ScheduleEvent struct {
	ID              uuid.UUID   `json:"id"`
	DayPlanID       uuid.UUID   `json:"dayPlanID"`
	TenantID        uuid.UUID   `json:"tenantID"`
	Kind            EventKind   `json:"kind"`
	JobID           *uuid.UUID  `json:"jobID"` // set iff kind is job
	SequenceOrder   int32       `json:"sequenceOrder"`
	ScheduledStart  time.Time   `json:"scheduledStart"`
	DurationMinutes int32       `json:"durationMinutes"`
	Status          EventStatus `json:"status"`
	Location        *Location   `json:"location"`
	Notes           *string     `json:"notes"`
	CreatedAt       time.Time   `json:"createdAt"`
}

func (e *ScheduleEvent) End() time.Time {
	return e.ScheduledStart.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

func (e *ScheduleEvent) Clone() *ScheduleEvent {
	cp := *e
	if e.JobID != nil {
		id := *e.JobID
		cp.JobID = &id
	}
	if e.Location != nil {
		loc := *e.Location
		cp.Location = &loc
	}
	if e.Notes != nil {
		notes := *e.Notes
		cp.Notes = &notes
	}
	return &cp
}
