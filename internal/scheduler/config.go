package scheduler

import (
	"time"

	"github.com/tophand-tech/dayplan/backend/internal/config"
)

// ParametersFromConfig maps the SCHEDULER_* settings onto Parameters.
func ParametersFromConfig(cfg *config.Config) *Parameters {
	return &Parameters{
		MaxJobEvents:         cfg.Scheduler.MaxJobEvents,
		Location:             cfg.Location(),
		RetryAttempts:        cfg.Scheduler.RetryAttempts,
		RetryInitialInterval: time.Duration(cfg.Scheduler.RetryInitial) * time.Millisecond,
		RetryMaxInterval:     time.Duration(cfg.Scheduler.RetryMax) * time.Millisecond,
		DuplicatePolicy:      DuplicatePolicy(cfg.Scheduler.DuplicatePolicy),
	}
}
