package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type PlanStatus string

const (
	PlanStatusDraft     PlanStatus = "draft"
	PlanStatusPublished PlanStatus = "published"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// IsTerminal reports whether no further mutation or transition is allowed.
func (s PlanStatus) IsTerminal() bool {
	return s == PlanStatusCompleted || s == PlanStatusCancelled
}

type DayPlan struct {
	ID           uuid.UUID        `json:"id"`
	TenantID     uuid.UUID        `json:"tenantID"`
	TechnicianID uuid.UUID        `json:"technicianID"`
	PlanDate     civil.Date       `json:"planDate"`
	Status       PlanStatus       `json:"status"`
	Events       []*ScheduleEvent `json:"events"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
	Version      int32            `json:"-"`
}

// JobEventCount counts the events of kind job.
func (p *DayPlan) JobEventCount() int {
	n := 0
	for _, ev := range p.Events {
		if ev.Kind == EventKindJob {
			n++
		}
	}
	return n
}

// FindEvent returns the event with the given id and its 0-based index.
func (p *DayPlan) FindEvent(id uuid.UUID) (*ScheduleEvent, int) {
	for i, ev := range p.Events {
		if ev.ID == id {
			return ev, i
		}
	}
	return nil, -1
}

// Clone returns a deep copy, so stores can hand out plans without sharing state.
func (p *DayPlan) Clone() *DayPlan {
	cp := *p
	cp.Events = make([]*ScheduleEvent, len(p.Events))
	for i, ev := range p.Events {
		cp.Events[i] = ev.Clone()
	}
	return &cp
}
