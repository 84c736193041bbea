package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/api/middleware"
	"github.com/nutriplanhq/nutriplan-backend/api/responses"
	"github.com/nutriplanhq/nutriplan-backend/api/validators"
	"github.com/nutriplanhq/nutriplan-backend/internal/mealplans"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

const dateLayout = "2006-01-02"

// generatePlanRequest accepts both snake_case and camelCase spellings.
// Older mobile builds send camelCase and the week-start form, and the
// decoder rejects unknown keys, so every spelling stays declared. The
// authenticated token decides the user; user_id in the body is ignored.
// userPreferences is tolerated for the same reason, the stored profile
// drives generation.
type generatePlanRequest struct {
	UserID          string          `json:"user_id"`
	UserIDAlias     string          `json:"userId"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	StartDateAlias  string          `json:"startDate"`
	EndDateAlias    string          `json:"endDate"`
	WeekStartDate   string          `json:"week_start_date"`
	WeekStartAlias  string          `json:"weekStart"`
	DaysToGenerate  int             `json:"daysToGenerate" validate:"omitempty,min=1,max=31"`
	StartDayOffset  int             `json:"startDayOffset" validate:"omitempty,min=0,max=30"`
	SingleMeal      bool            `json:"singleMeal"`
	MealType        string          `json:"mealType"`
	ItemIDToReplace string          `json:"itemIdToReplace"`
	UserPreferences json.RawMessage `json:"userPreferences"`
}

// generatePlanResponse is the wire answer of the generate endpoint.
type generatePlanResponse struct {
	Success        bool                      `json:"success"`
	MealPlanID     uuid.UUID                 `json:"meal_plan_id"`
	MealsGenerated int                       `json:"meals_generated"`
	Items          []mealplans.GeneratedItem `json:"items"`
	Skipped        []mealplans.SkippedSlot   `json:"skipped"`
}

func newGeneratePlanResponse(result *mealplans.GenerateResult) generatePlanResponse {
	return generatePlanResponse{
		Success:        true,
		MealPlanID:     result.PlanID,
		MealsGenerated: len(result.Items),
		Items:          result.Items,
		Skipped:        result.Skipped,
	}
}

// dates resolves the requested range. Explicit start/end dates win; the
// week-start form derives the range from daysToGenerate (a week when
// unset) shifted by startDayOffset.
func (r generatePlanRequest) dates() (time.Time, time.Time, error) {
	startRaw := firstNonEmpty(r.StartDate, r.StartDateAlias)
	endRaw := firstNonEmpty(r.EndDate, r.EndDateAlias)
	weekRaw := firstNonEmpty(r.WeekStartDate, r.WeekStartAlias)

	if startRaw != "" && endRaw != "" {
		start, err := time.Parse(dateLayout, startRaw)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start_date")
		}
		end, err := time.Parse(dateLayout, endRaw)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid end_date")
		}
		return start, end, nil
	}

	if weekRaw != "" {
		weekStart, err := time.Parse(dateLayout, weekRaw)
		if err != nil {
			return time.Time{}, time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid week_start_date")
		}
		days := r.DaysToGenerate
		if days <= 0 {
			days = 7
		}
		start := weekStart.AddDate(0, 0, r.StartDayOffset)
		end := start.AddDate(0, 0, days-1)
		return start, end, nil
	}

	return time.Time{}, time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, "week_start_date or start_date and end_date are required")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// MealPlanController serves generation and date validation.
type MealPlanController struct {
	svc  *mealplans.Service
	logg *logger.Logger
}

func NewMealPlanController(svc *mealplans.Service, logg *logger.Logger) (*MealPlanController, error) {
	if svc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "meal plan service is required")
	}
	return &MealPlanController{svc: svc, logg: logg}, nil
}

// Generate builds a plan for the requested range. Partial answers are
// success: slots the model could not fill come back in skipped.
func (c *MealPlanController) Generate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req generatePlanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		// Single-meal replace rides the same endpoint for older clients.
		if req.ItemIDToReplace != "" {
			itemID, err := uuid.Parse(req.ItemIDToReplace)
			if err != nil {
				responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
				return
			}
			item, err := c.svc.ReplaceMeal(ctx, userID, itemID)
			if err != nil {
				responses.WriteError(ctx, c.logg, w, err)
				return
			}
			responses.WriteSuccess(w, generatePlanResponse{
				Success:        true,
				MealPlanID:     item.MealPlanID,
				MealsGenerated: 1,
				Items:          []mealplans.GeneratedItem{*item},
			})
			return
		}

		start, end, err := req.dates()
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		result, err := c.svc.Generate(ctx, userID, start, end)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, newGeneratePlanResponse(result))
	}
}

// ValidateDates runs the entitlement gate without generating anything, so
// clients can disable out-of-period days in the date picker.
func (c *MealPlanController) ValidateDates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		var req generatePlanRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		start, end, err := req.dates()
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}

		if err := c.svc.ValidateDates(ctx, userID, start, end); err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"valid": true})
	}
}

// ReplaceMeal regenerates the recipe behind a single plan item.
func (c *MealPlanController) ReplaceMeal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		userID := middleware.UserUUIDFromContext(ctx)
		if userID == uuid.Nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
		if err != nil {
			responses.WriteError(ctx, c.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid item id"))
			return
		}

		item, err := c.svc.ReplaceMeal(ctx, userID, itemID)
		if err != nil {
			responses.WriteError(ctx, c.logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
