package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.health(ctx); err != nil {
			h.log.Warn("health check failed", zap.Error(err))
			h.errorResponse(w, r, http.StatusServiceUnavailable, "unhealthy", nil)
			return
		}
	}

	h.successResponse(w, r, "ok", nil)
}
