package controllers

import (
	"net/http"

	"github.com/nutriplanhq/nutriplan-backend/api/responses"
	"github.com/nutriplanhq/nutriplan-backend/internal/geo"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

// DetectCountry resolves the caller's billing gateway and currency from
// edge headers. Public and side-effect free; clients call it before the
// user is authenticated to pick which checkout flow to render.
func DetectCountry(detector *geo.Detector, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if detector == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "detector unavailable"))
			return
		}
		detection := detector.Detect(
			ctx,
			r.Header.Get("CF-IPCountry"),
			r.Header.Get("Accept-Language"),
		)
		responses.WriteSuccess(w, detection)
	}
}
