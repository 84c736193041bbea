package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/mealplans"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/llm"
)

func TestGeneratePlanRequestDates(t *testing.T) {
	cases := map[string]struct {
		req       generatePlanRequest
		wantStart string
		wantEnd   string
		wantErr   bool
	}{
		"snake case": {
			req:       generatePlanRequest{StartDate: "2025-06-10", EndDate: "2025-06-12"},
			wantStart: "2025-06-10",
			wantEnd:   "2025-06-12",
		},
		"camel case fallback": {
			req:       generatePlanRequest{StartDateAlias: "2025-06-10", EndDateAlias: "2025-06-12"},
			wantStart: "2025-06-10",
			wantEnd:   "2025-06-12",
		},
		"snake case wins over alias": {
			req: generatePlanRequest{
				StartDate: "2025-06-10", EndDate: "2025-06-12",
				StartDateAlias: "2025-01-01", EndDateAlias: "2025-01-02",
			},
			wantStart: "2025-06-10",
			wantEnd:   "2025-06-12",
		},
		"week start covers seven days": {
			req:       generatePlanRequest{WeekStartDate: "2025-06-02"},
			wantStart: "2025-06-02",
			wantEnd:   "2025-06-08",
		},
		"week start camel alias": {
			req:       generatePlanRequest{WeekStartAlias: "2025-06-02"},
			wantStart: "2025-06-02",
			wantEnd:   "2025-06-08",
		},
		"week start with day count and offset": {
			req:       generatePlanRequest{WeekStartDate: "2025-06-02", DaysToGenerate: 3, StartDayOffset: 2},
			wantStart: "2025-06-04",
			wantEnd:   "2025-06-06",
		},
		"explicit range wins over week start": {
			req:       generatePlanRequest{StartDate: "2025-06-10", EndDate: "2025-06-12", WeekStartDate: "2025-01-01"},
			wantStart: "2025-06-10",
			wantEnd:   "2025-06-12",
		},
		"missing end without week start": {
			req:     generatePlanRequest{StartDate: "2025-06-10"},
			wantErr: true,
		},
		"garbage date": {
			req:     generatePlanRequest{StartDate: "10/06/2025", EndDate: "2025-06-12"},
			wantErr: true,
		},
		"garbage week start": {
			req:     generatePlanRequest{WeekStartDate: "junio"},
			wantErr: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			start, end, err := tc.req.dates()
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("dates: %v", err)
			}
			wantStart, _ := time.Parse(dateLayout, tc.wantStart)
			wantEnd, _ := time.Parse(dateLayout, tc.wantEnd)
			if !start.Equal(wantStart) {
				t.Fatalf("start = %s, want %s", start, wantStart)
			}
			if !end.Equal(wantEnd) {
				t.Fatalf("end = %s, want %s", end, wantEnd)
			}
		})
	}
}

type mealStubRepo struct {
	planID uuid.UUID
}

func (r *mealStubRepo) WithTx(_ *gorm.DB) mealplans.Repository { return r }

func (r *mealStubRepo) CreatePlan(_ context.Context, plan *models.MealPlan) error {
	plan.ID = uuid.New()
	r.planID = plan.ID
	return nil
}

func (r *mealStubRepo) CreateRecipe(_ context.Context, recipe *models.Recipe) error {
	recipe.ID = uuid.New()
	return nil
}

func (r *mealStubRepo) CreateItem(_ context.Context, item *models.MealPlanItem) error {
	item.ID = uuid.New()
	return nil
}

func (r *mealStubRepo) FindPlanByID(_ context.Context, _ uuid.UUID) (*models.MealPlan, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "meal plan not found")
}

func (r *mealStubRepo) FindItemByID(_ context.Context, _ uuid.UUID) (*models.MealPlanItem, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "meal plan item not found")
}

func (r *mealStubRepo) ListItems(_ context.Context, _ uuid.UUID) ([]models.MealPlanItem, error) {
	return nil, nil
}

func (r *mealStubRepo) SetItemRecipe(_ context.Context, _, _ uuid.UUID) error { return nil }

type mealStubSubs struct{}

func (mealStubSubs) FindByUserID(_ context.Context, userID uuid.UUID) (*models.Subscription, error) {
	start := time.Now().UTC().AddDate(0, 0, -1)
	end := time.Now().UTC().AddDate(0, 0, 30)
	return &models.Subscription{
		UserID:             userID,
		Plan:               enums.PlanMonthly,
		Status:             enums.SubscriptionStatusActive,
		Subscribed:         true,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}, nil
}

type mealStubProfiles struct{}

func (mealStubProfiles) FindOrDefault(_ context.Context, userID uuid.UUID) (*models.Profile, error) {
	return &models.Profile{UserID: userID, DailyCalorieGoal: 2000, Language: "es"}, nil
}

type mealStubLLM struct{}

func (mealStubLLM) Complete(_ context.Context, _ llm.Request) (string, error) {
	return `{"name":"Milanesa con ensalada","description":"clásico","ingredients":["milanesa"],"instructions":["cocinar"],"calories":500,"protein_grams":35,"carbs_grams":40,"fat_grams":20,"prep_minutes":25}`, nil
}

type mealStubTx struct{}

func (mealStubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func newMealPlanTestController(t *testing.T, repo *mealStubRepo) *MealPlanController {
	t.Helper()
	svc, err := mealplans.NewService(mealplans.ServiceParams{
		Repo:              repo,
		Subscriptions:     mealStubSubs{},
		Profiles:          mealStubProfiles{},
		LLM:               mealStubLLM{},
		TransactionRunner: mealStubTx{},
		Logger:            testLogger(),
	})
	if err != nil {
		t.Fatalf("meal plan service: %v", err)
	}
	controller, err := NewMealPlanController(svc, testLogger())
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	return controller
}

func TestGenerateAnswersPlanContract(t *testing.T) {
	repo := &mealStubRepo{}
	controller := newMealPlanTestController(t, repo)

	day := time.Now().UTC().AddDate(0, 0, 1).Format(dateLayout)
	body := `{"week_start_date":"` + day + `","daysToGenerate":1,"userPreferences":{"note":"sin picante"}}`
	r := authedRequest(http.MethodPost, "/api/v1/meal-plans/generate", strings.NewReader(body), uuid.New())
	r.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	controller.Generate().ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Data generatePlanResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	got := envelope.Data
	if !got.Success {
		t.Fatal("expected success true")
	}
	if got.MealPlanID != repo.planID {
		t.Fatalf("meal_plan_id = %s, want %s", got.MealPlanID, repo.planID)
	}
	if got.MealsGenerated != len(got.Items) || got.MealsGenerated == 0 {
		t.Fatalf("meals_generated = %d with %d items", got.MealsGenerated, len(got.Items))
	}
	for _, item := range got.Items {
		if item.MealPlanID != repo.planID {
			t.Fatalf("item carries plan %s, want %s", item.MealPlanID, repo.planID)
		}
	}
}
