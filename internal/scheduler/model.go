package scheduler

import (
	"time"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

const DefaultMaxJobEvents = 6

type DuplicatePolicy string

const (
	// DuplicateReject turns a repeated assignment into ErrDuplicateAssignment.
	DuplicateReject DuplicatePolicy = "reject"
	// DuplicateIgnore treats a repeated assignment as an idempotent no-op.
	DuplicateIgnore DuplicatePolicy = "ignore"
)

// Parameters tune the scheduler.
type Parameters struct {
	MaxJobEvents         int            // job events allowed per day plan
	Location             *time.Location // timezone calendar dates are taken in
	RetryAttempts        int            // retries after the first attempt, infrastructure errors only
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	DuplicatePolicy      DuplicatePolicy
}

func DefaultParameters() *Parameters {
	return &Parameters{
		MaxJobEvents:         DefaultMaxJobEvents,
		Location:             time.UTC,
		RetryAttempts:        3,
		RetryInitialInterval: 20 * time.Millisecond,
		RetryMaxInterval:     250 * time.Millisecond,
		DuplicatePolicy:      DuplicateReject,
	}
}

// EventSpec describes an event to add. Position is 1-based; 0 appends.
type EventSpec struct {
	Kind            domain.EventKind
	JobID           *uuid.UUID
	ScheduledStart  time.Time
	DurationMinutes int32
	Location        *domain.Location
	Notes           *string
	Position        int
}
