package handler

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/tophand-tech/dayplan/backend/internal/scheduler"
	"go.uber.org/zap"
)

// technicianFor resolves the technician a request acts for. Technicians may
// only act for themselves.
func technicianFor(r *http.Request, requested *uuid.UUID) (uuid.UUID, error) {
	if requested == nil || *requested == uuid.Nil {
		return sub(r), nil
	}
	if *requested != sub(r) && !isSupervisor(r) {
		return uuid.Nil, domain.ErrForbidden.With("technicianID", *requested)
	}
	return *requested, nil
}

func (h *Handler) CreateDayPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TechnicianID *uuid.UUID `json:"technicianID"`
		Date         string     `json:"date" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	date, err := civil.ParseDate(req.Date)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD", nil)
		return
	}

	technicianID, err := technicianFor(r, req.TechnicianID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	plan, err := h.scheduler.CreatePlan(r.Context(), tenant(r), technicianID, date)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.createdResponse(w, r, "day plan created", plan)
}

func (h *Handler) FindDayPlan(w http.ResponseWriter, r *http.Request) {
	var requested *uuid.UUID
	if raw := r.URL.Query().Get("technicianID"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.errorResponse(w, r, http.StatusBadRequest, "invalid technician id", nil)
			return
		}
		requested = &id
	}

	date, err := civil.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD", nil)
		return
	}

	technicianID, err := technicianFor(r, requested)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	plan, err := h.scheduler.FindPlan(r.Context(), tenant(r), technicianID, date)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "day plan loaded", plan)
}

func (h *Handler) GetDayPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	h.successResponse(w, r, "day plan loaded", plan)
}

func (h *Handler) PublishDayPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	published, err := h.scheduler.PublishPlan(r.Context(), plan.TenantID, plan.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.notifyPlanPublished(r.Context(), published)

	h.successResponse(w, r, "day plan published", published)
}

func (h *Handler) CompleteDayPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	completed, err := h.scheduler.CompletePlan(r.Context(), plan.TenantID, plan.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "day plan completed", completed)
}

func (h *Handler) CancelDayPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	cancelled, err := h.scheduler.CancelPlan(r.Context(), plan.TenantID, plan.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "day plan cancelled", cancelled)
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	var req struct {
		Kind            string           `json:"kind" validate:"required,oneof=job break travel maintenance meeting"`
		JobID           *uuid.UUID       `json:"jobID"`
		ScheduledStart  time.Time        `json:"scheduledStart" validate:"required"`
		DurationMinutes int32            `json:"durationMinutes" validate:"required,gt=0,lte=1440"`
		Location        *locationRequest `json:"location"`
		Notes           *string          `json:"notes" validate:"omitempty,max=2000"`
		Position        int              `json:"position" validate:"gte=0"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	spec := scheduler.EventSpec{
		Kind:            domain.EventKind(req.Kind),
		JobID:           req.JobID,
		ScheduledStart:  req.ScheduledStart,
		DurationMinutes: req.DurationMinutes,
		Notes:           req.Notes,
		Position:        req.Position,
	}
	if req.Location != nil {
		spec.Location = &domain.Location{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude}
	}

	updated, ev, err := h.scheduler.AddEvent(r.Context(), plan.TenantID, plan.ID, spec)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.createdResponse(w, r, "event added", struct {
		Plan  *domain.DayPlan       `json:"plan"`
		Event *domain.ScheduleEvent `json:"event"`
	}{updated, ev})
}

func eventID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, "eventID"))
}

func (h *Handler) RemoveEvent(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	id, err := eventID(r)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	updated, err := h.scheduler.RemoveEvent(r.Context(), plan.TenantID, plan.ID, id)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "event removed", updated)
}

func (h *Handler) ReorderEvent(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	id, err := eventID(r)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	var req struct {
		Position int `json:"position" validate:"required,gte=1"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.scheduler.ReorderEvent(r.Context(), plan.TenantID, plan.ID, id, req.Position)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "event moved", updated)
}

func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(DayPlanCtx).(*domain.DayPlan)

	id, err := eventID(r)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid event id", nil)
		return
	}

	var req struct {
		Status string `json:"status" validate:"required,oneof=pending in_progress completed skipped"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	updated, err := h.scheduler.UpdateEventStatus(r.Context(), plan.TenantID, plan.ID, id, domain.EventStatus(req.Status))
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "event status updated", updated)
}

// notifyPlanPublished enqueues the technician's e-mail. The plan is already
// published, so failures are only logged.
func (h *Handler) notifyPlanPublished(ctx context.Context, plan *domain.DayPlan) {
	technician, err := h.directory.GetUser(ctx, plan.TenantID, plan.TechnicianID)
	if err != nil {
		h.log.Warn("cannot notify technician", zap.Stringer("planID", plan.ID), zap.Error(err))
		return
	}

	msg := domain.NotificationMessage{
		Type: domain.NotificationPlanPublished,
		To:   technician.Email,
		Data: domain.PlanPublishedMailData{
			FullName:   technician.FullName,
			PlanDate:   plan.PlanDate.String(),
			EventCount: len(plan.Events),
			JobCount:   plan.JobEventCount(),
		},
	}
	if err := h.notifier.Publish(ctx, msg); err != nil {
		h.log.Warn("failed to enqueue notification", zap.String("type", msg.Type), zap.Stringer("planID", plan.ID), zap.Error(err))
	}
}
