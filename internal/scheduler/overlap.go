package scheduler

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start time.Time, durationMinutes int32) Window {
	return Window{Start: start, End: start.Add(time.Duration(durationMinutes) * time.Minute)}
}

// Overlaps uses strict inequalities: windows that only touch (a.End == b.Start)
// do not overlap.
func (w Window) Overlaps(o Window) bool {
	return w.Start.Before(o.End) && o.Start.Before(w.End)
}

func eventWindow(ev *domain.ScheduleEvent) Window {
	return NewWindow(ev.ScheduledStart, ev.DurationMinutes)
}

// jobWindow returns false for jobs without a concrete time window.
func jobWindow(job *domain.Job) (Window, bool) {
	if !job.IsScheduled() {
		return Window{}, false
	}
	return NewWindow(*job.ScheduledStart, job.DurationMinutes), true
}

// dateIn returns the calendar date of t as seen from loc.
func dateIn(t time.Time, loc *time.Location) civil.Date {
	return civil.DateOf(t.In(loc))
}
