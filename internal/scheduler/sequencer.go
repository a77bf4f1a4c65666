package scheduler

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// The event sequencer keeps SequenceOrder dense: after every operation the
// values are exactly 1..N in slice order.

// insertAt places ev at the 1-based position; 0 appends. Events at or after
// position shift up by one.
func insertAt(events []*domain.ScheduleEvent, ev *domain.ScheduleEvent, position int) ([]*domain.ScheduleEvent, error) {
	n := len(events)
	if position == 0 {
		position = n + 1
	}
	if position < 1 || position > n+1 {
		return events, domain.ErrInvalidPosition.With("position", position, "min", 1, "max", n+1)
	}

	out := make([]*domain.ScheduleEvent, 0, n+1)
	out = append(out, events[:position-1]...)
	out = append(out, ev)
	out = append(out, events[position-1:]...)
	renumber(out)
	return out, nil
}

// removeByID deletes the event and shifts every later event down by one.
func removeByID(events []*domain.ScheduleEvent, id uuid.UUID) ([]*domain.ScheduleEvent, *domain.ScheduleEvent, error) {
	idx := indexOf(events, id)
	if idx < 0 {
		return events, nil, domain.ErrEventNotFound.With("eventID", id)
	}

	removed := events[idx]
	out := make([]*domain.ScheduleEvent, 0, len(events)-1)
	out = append(out, events[:idx]...)
	out = append(out, events[idx+1:]...)
	renumber(out)
	return out, removed, nil
}

// moveTo is remove followed by insert on the same list. newPosition must lie
// in [1, N] where N counts the event being moved.
func moveTo(events []*domain.ScheduleEvent, id uuid.UUID, newPosition int) ([]*domain.ScheduleEvent, error) {
	n := len(events)
	idx := indexOf(events, id)
	if idx < 0 {
		return events, domain.ErrEventNotFound.With("eventID", id)
	}
	if newPosition < 1 || newPosition > n {
		return events, domain.ErrInvalidPosition.With("position", newPosition, "min", 1, "max", n)
	}

	rest, ev, err := removeByID(events, id)
	if err != nil {
		return events, err
	}
	return insertAt(rest, ev, newPosition)
}

func renumber(events []*domain.ScheduleEvent) {
	for i, ev := range events {
		ev.SequenceOrder = int32(i + 1)
	}
}

// verifySequence checks the dense 1..N invariant.
func verifySequence(events []*domain.ScheduleEvent) error {
	for i, ev := range events {
		if ev.SequenceOrder != int32(i+1) {
			return fmt.Errorf("event %s has sequence_order %d at position %d", ev.ID, ev.SequenceOrder, i+1)
		}
	}
	return nil
}

func indexOf(events []*domain.ScheduleEvent, id uuid.UUID) int {
	for i, ev := range events {
		if ev.ID == id {
			return i
		}
	}
	return -1
}
