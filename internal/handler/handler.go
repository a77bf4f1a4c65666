package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/google/uuid"
	"github.com/tophand-tech/dayplan/backend/internal/config"
	"github.com/tophand-tech/dayplan/backend/internal/domain"
	"github.com/tophand-tech/dayplan/backend/internal/notify"
	"github.com/tophand-tech/dayplan/backend/internal/quota"
	"github.com/tophand-tech/dayplan/backend/internal/scheduler"
	"go.uber.org/zap"
)

// Directory resolves the jobs and users referenced by requests.
type Directory interface {
	GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*domain.Job, error)
	GetUser(ctx context.Context, tenantID, userID uuid.UUID) (*domain.User, error)
}

type QuotaRecorder interface {
	ObserveQuotaRejection(scope string)
}

type Dependencies struct {
	Scheduler *scheduler.Scheduler
	Directory Directory
	Notifier  notify.Publisher
	Quota     *quota.DailyCounter
	Metrics   QuotaRecorder
	// MetricsHandler is mounted at the configured metrics path when set.
	MetricsHandler http.Handler
	Health         func(ctx context.Context) error
	Logger         *zap.Logger
}

type Handler struct {
	validate   *validator.Validate
	config     *config.Config
	translator ut.Translator

	scheduler      *scheduler.Scheduler
	directory      Directory
	notifier       notify.Publisher
	limiter        *quota.DailyCounter
	metrics        QuotaRecorder
	metricsHandler http.Handler
	health         func(ctx context.Context) error
	log            *zap.Logger

	Mux *chi.Mux
}

type nopQuotaRecorder struct{}

func (nopQuotaRecorder) ObserveQuotaRejection(string) {}

func NewHandler(cfg *config.Config, deps Dependencies) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")
	if err := en_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	h := &Handler{
		validate:   validate,
		config:     cfg,
		translator: trans,

		scheduler:      deps.Scheduler,
		directory:      deps.Directory,
		notifier:       deps.Notifier,
		limiter:        deps.Quota,
		metrics:        deps.Metrics,
		metricsHandler: deps.MetricsHandler,
		health:         deps.Health,
		log:            deps.Logger,

		Mux: chi.NewRouter(),
	}
	if h.notifier == nil {
		h.notifier = notify.NopPublisher{}
	}
	if h.metrics == nil {
		h.metrics = nopQuotaRecorder{}
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}

	return h, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	h.Mux.Get("/healthz", h.Healthz)
	if h.config.Metrics.Enabled && h.metricsHandler != nil {
		h.Mux.Handle(h.config.Metrics.Path, h.metricsHandler)
	}

	supervisors := []domain.Role{domain.RoleSupervisor, domain.RoleAdmin}

	// everything below requires a token from the auth provider
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)

		r.Get("/me", h.GetMyInfo)

		r.Route("/day-plans", func(r chi.Router) {
			r.With(h.dailyQuota).Post("/", h.CreateDayPlan)
			r.Get("/", h.FindDayPlan)
			r.Route("/{planID}", func(r chi.Router) {
				r.Use(h.dayPlan)
				r.Get("/", h.GetDayPlan)
				r.Group(func(r chi.Router) {
					r.Use(h.dailyQuota)
					r.Post("/publish", h.PublishDayPlan)
					r.Post("/complete", h.CompleteDayPlan)
					r.Post("/cancel", h.CancelDayPlan)
					r.Post("/events", h.AddEvent)
					r.Route("/events/{eventID}", func(r chi.Router) {
						r.Delete("/", h.RemoveEvent)
						r.Patch("/position", h.ReorderEvent)
						r.Patch("/status", h.UpdateEventStatus)
					})
				})
			})
		})

		r.Route("/jobs/{jobID}/crew", func(r chi.Router) {
			r.Use(h.job)
			r.Get("/", h.ListCrew)
			r.With(h.RequiredRole(supervisors)).Post("/validate", h.ValidateCrew)
			r.With(h.RequiredRole(supervisors), h.dailyQuota).Post("/", h.AssignCrew)
			r.With(h.RequiredRole(supervisors), h.dailyQuota).Delete("/{userID}", h.UnassignCrew)
		})
	})
}
