package domain

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusDraft      JobStatus = "draft"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

func (s JobStatus) Assignable() bool {
	return s != JobStatusCompleted && s != JobStatusCancelled
}

// Job is the slice of the job record the scheduler needs. Jobs are owned
// by the job domain; the scheduler only reads them.
type Job struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenantID"`
	JobNumber       string     `json:"jobNumber"`
	Title           string     `json:"title"`
	Status          JobStatus  `json:"status"`
	ScheduledStart  *time.Time `json:"scheduledStart"`
	DurationMinutes int32      `json:"durationMinutes"`
	AssignedTo      *uuid.UUID `json:"assignedTo"`
}

// IsScheduled reports whether the job has a concrete time window.
func (j *Job) IsScheduled() bool {
	return j.ScheduledStart != nil && j.DurationMinutes > 0
}
