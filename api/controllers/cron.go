package controllers

import (
	"net/http"

	"github.com/nutriplanhq/nutriplan-backend/api/responses"
	"github.com/nutriplanhq/nutriplan-backend/internal/cron"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

// RunCronJob exposes a single job behind the internal cron surface so an
// external scheduler can drive it. The loop in cmd/cron-worker runs the
// same jobs; deployments pick one trigger, not both.
func RunCronJob(job cron.Job, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if job == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "job unavailable"))
			return
		}

		if logg != nil {
			ctx = logg.WithField(ctx, "job", job.Name())
		}
		if err := job.Run(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "run "+job.Name()))
			return
		}
		responses.WriteSuccess(w, map[string]string{"job": job.Name(), "status": "completed"})
	}
}
