package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
)

type ContextKey string

var (
	RoleCtxKey   ContextKey = "role"
	SubCtxKey    ContextKey = "sub"
	TenantCtxKey ContextKey = "tenant"
	DayPlanCtx   ContextKey = "dayPlan"
	JobCtx       ContextKey = "job"
)

func sub(r *http.Request) uuid.UUID {
	return r.Context().Value(SubCtxKey).(uuid.UUID)
}

func tenant(r *http.Request) uuid.UUID {
	return r.Context().Value(TenantCtxKey).(uuid.UUID)
}

func role(r *http.Request) domain.Role {
	return r.Context().Value(RoleCtxKey).(domain.Role)
}

func isSupervisor(r *http.Request) bool {
	switch role(r) {
	case domain.RoleSupervisor, domain.RoleAdmin:
		return true
	}
	return false
}
