package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"go.uber.org/zap"
)

type crewRequest struct {
	UserIDs []uuid.UUID `json:"userIDs" validate:"required,min=1,max=50"`
}

func (h *Handler) readCrewRequest(w http.ResponseWriter, r *http.Request) ([]uuid.UUID, bool) {
	var req crewRequest

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return nil, false
	}
	return req.UserIDs, true
}

func (h *Handler) ListCrew(w http.ResponseWriter, r *http.Request) {
	job := r.Context().Value(JobCtx).(*domain.Job)

	crew, err := h.scheduler.ListCrew(r.Context(), job.TenantID, job.ID)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "crew loaded", crew)
}

// ValidateCrew reports which users could be assigned without assigning them.
func (h *Handler) ValidateCrew(w http.ResponseWriter, r *http.Request) {
	job := r.Context().Value(JobCtx).(*domain.Job)

	userIDs, ok := h.readCrewRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scheduler.ValidateBulkAssignment(r.Context(), job.TenantID, job.ID, userIDs)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "crew validated", result)
}

func (h *Handler) AssignCrew(w http.ResponseWriter, r *http.Request) {
	job := r.Context().Value(JobCtx).(*domain.Job)

	userIDs, ok := h.readCrewRequest(w, r)
	if !ok {
		return
	}

	result, err := h.scheduler.AssignCrew(r.Context(), job.TenantID, job.ID, sub(r), userIDs)
	if err != nil {
		h.domainError(w, r, err)
		return
	}

	for _, userID := range result.Created {
		h.notifyCrewAssigned(r.Context(), job, userID)
	}

	h.successResponse(w, r, "crew assignment processed", result)
}

func (h *Handler) UnassignCrew(w http.ResponseWriter, r *http.Request) {
	job := r.Context().Value(JobCtx).(*domain.Job)

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid user id", nil)
		return
	}

	if err := h.scheduler.UnassignCrew(r.Context(), job.TenantID, job.ID, userID, sub(r)); err != nil {
		h.domainError(w, r, err)
		return
	}

	h.successResponse(w, r, "crew member removed", nil)
}

func (h *Handler) notifyCrewAssigned(ctx context.Context, job *domain.Job, userID uuid.UUID) {
	user, err := h.directory.GetUser(ctx, job.TenantID, userID)
	if err != nil {
		h.log.Warn("cannot notify crew member", zap.Stringer("userID", userID), zap.Error(err))
		return
	}

	msg := domain.NotificationMessage{
		Type: domain.NotificationCrewAssigned,
		To:   user.Email,
		Data: domain.CrewAssignedMailData{
			FullName:       user.FullName,
			JobNumber:      job.JobNumber,
			JobTitle:       job.Title,
			ScheduledStart: job.ScheduledStart,
		},
	}
	if err := h.notifier.Publish(ctx, msg); err != nil {
		h.log.Warn("failed to enqueue notification", zap.String("type", msg.Type), zap.Stringer("jobID", job.ID), zap.Error(err))
	}
}
