package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/tophand-tech/dayplan/backend/internal/quota"
	"go.uber.org/zap"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.log.Info("request handled",
			zap.Int("status", rw.StatusCode),
			zap.String("ip", r.RemoteAddr),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.log.Error("panic while handling request", zap.Any("panic", err), zap.ByteString("stack", debug.Stack()))
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := h.tokenFromRequest(r)
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "not logged in", nil)
			return
		}

		claims, err := h.parseToken(tokenString)
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		userID, err := uuid.Parse(claims.Subject)
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "invalid token", nil)
			return
		}
		tenantID, err := uuid.Parse(claims.AppMetadata.TenantID)
		if err != nil {
			h.errorResponse(w, r, http.StatusUnauthorized, "token carries no tenant", nil)
			return
		}

		role := domain.Role(claims.AppMetadata.Role)
		switch role {
		case "":
			role = domain.RoleTechnician
		case domain.RoleTechnician, domain.RoleSupervisor, domain.RoleAdmin:
		default:
			h.errorResponse(w, r, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, RoleCtxKey, role)
		ctx = context.WithValue(ctx, SubCtxKey, userID)
		ctx = context.WithValue(ctx, TenantCtxKey, tenantID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) RequiredRole(roles []domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !slices.Contains(roles, role(r)) {
				h.errorResponse(w, r, http.StatusForbidden, "insufficient permissions", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// dailyQuota counts mutating requests per tenant. When the counter store is
// unreachable the request is let through.
func (h *Handler) dailyQuota(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		usage, err := h.limiter.Allow(r.Context(), tenant(r).String())
		switch {
		case errors.Is(err, quota.ErrExceeded):
			h.metrics.ObserveQuotaRejection("tenant")
			h.errorResponse(w, r, http.StatusTooManyRequests, "daily request quota exhausted", map[string]any{
				"limit":   usage.Limit,
				"resetAt": usage.ResetAt,
			})
			return
		case err != nil:
			h.log.Warn("quota store unavailable, allowing request", zap.Error(err))
		default:
			w.Header().Set("X-Quota-Limit", strconv.FormatInt(usage.Limit, 10))
			w.Header().Set("X-Quota-Remaining", strconv.FormatInt(usage.Remaining(), 10))
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handler) dayPlan(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		planID, err := uuid.Parse(chi.URLParam(r, "planID"))
		if err != nil {
			h.errorResponse(w, r, http.StatusBadRequest, "invalid day plan id", nil)
			return
		}

		plan, err := h.scheduler.GetPlan(r.Context(), tenant(r), planID)
		if err != nil {
			h.domainError(w, r, err)
			return
		}

		// technicians only see their own plans
		if !isSupervisor(r) && plan.TechnicianID != sub(r) {
			h.domainError(w, r, domain.ErrForbidden.With("planID", planID))
			return
		}

		ctx := context.WithValue(r.Context(), DayPlanCtx, plan)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) job(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			h.errorResponse(w, r, http.StatusBadRequest, "invalid job id", nil)
			return
		}

		job, err := h.directory.GetJob(r.Context(), tenant(r), jobID)
		if err != nil {
			h.domainError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), JobCtx, job)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
