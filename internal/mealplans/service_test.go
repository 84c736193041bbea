package mealplans

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/llm"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type stubRepo struct {
	plans   []*models.MealPlan
	recipes []*models.Recipe
	items   []*models.MealPlanItem

	existingPlan *models.MealPlan
	existingItem *models.MealPlanItem
	relinked     map[uuid.UUID]uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) CreatePlan(ctx context.Context, plan *models.MealPlan) error {
	plan.ID = uuid.New()
	s.plans = append(s.plans, plan)
	return nil
}

func (s *stubRepo) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	recipe.ID = uuid.New()
	s.recipes = append(s.recipes, recipe)
	return nil
}

func (s *stubRepo) CreateItem(ctx context.Context, item *models.MealPlanItem) error {
	item.ID = uuid.New()
	s.items = append(s.items, item)
	return nil
}

func (s *stubRepo) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.MealPlan, error) {
	if s.existingPlan != nil && s.existingPlan.ID == id {
		return s.existingPlan, nil
	}
	return nil, nil
}

func (s *stubRepo) FindItemByID(ctx context.Context, id uuid.UUID) (*models.MealPlanItem, error) {
	if s.existingItem != nil && s.existingItem.ID == id {
		return s.existingItem, nil
	}
	return nil, nil
}

func (s *stubRepo) ListItems(ctx context.Context, planID uuid.UUID) ([]models.MealPlanItem, error) {
	return nil, nil
}

func (s *stubRepo) SetItemRecipe(ctx context.Context, itemID, recipeID uuid.UUID) error {
	if s.relinked == nil {
		s.relinked = map[uuid.UUID]uuid.UUID{}
	}
	s.relinked[itemID] = recipeID
	return nil
}

type stubSubs struct {
	sub *models.Subscription
}

func (s *stubSubs) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.sub, nil
}

type stubProfiles struct {
	profile *models.Profile
}

func (s *stubProfiles) FindOrDefault(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	return s.profile, nil
}

// stubLLM answers a fresh recipe JSON per call, optionally failing specific
// call indexes. Prompts are captured for variety assertions.
type stubLLM struct {
	calls   int
	failOn  map[int]bool
	prompts []string
}

func (s *stubLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.calls++
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			s.prompts = append(s.prompts, msg.Content)
		}
	}
	if s.failOn[s.calls] {
		return "", errors.New("model overloaded")
	}
	return fmt.Sprintf(`{
		"name": "Receta %d",
		"description": "plato de prueba",
		"ingredients": ["100g avena", "1 banana"],
		"instructions": ["Mezclar", "Servir"],
		"calories": 500,
		"protein_grams": 30,
		"carbs_grams": 60,
		"fat_grams": 15,
		"prep_minutes": 10
	}`, s.calls), nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error { return fn(nil) }

func day(value string) time.Time {
	t, _ := time.Parse("2006-01-02", value)
	return t
}

func activeSub(userID uuid.UUID) *models.Subscription {
	start := day("2025-06-01")
	end := day("2025-07-01")
	return &models.Subscription{
		UserID:             userID,
		Plan:               enums.PlanMonthly,
		Status:             enums.SubscriptionStatusActive,
		Subscribed:         true,
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
	}
}

type fixture struct {
	service  *Service
	repo     *stubRepo
	subs     *stubSubs
	profiles *stubProfiles
	llm      *stubLLM
}

func newFixture(t *testing.T, userID uuid.UUID) *fixture {
	t.Helper()
	repo := &stubRepo{}
	subs := &stubSubs{sub: activeSub(userID)}
	profiles := &stubProfiles{profile: &models.Profile{
		UserID:           userID,
		DailyCalorieGoal: 2000,
		DietType:         enums.DietTypeBalanced,
		SnackPreference:  enums.SnackPreferenceThreeMeals,
		Language:         "es",
	}}
	model := &stubLLM{}
	service, err := NewService(ServiceParams{
		Repo:              repo,
		Subscriptions:     subs,
		Profiles:          profiles,
		LLM:               model,
		TransactionRunner: stubTx{},
		Logger:            logger.New(logger.Options{Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{service: service, repo: repo, subs: subs, profiles: profiles, llm: model}
}

func TestGenerateFillsEverySlot(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	result, err := f.service.Generate(context.Background(), userID, day("2025-06-10"), day("2025-06-11"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Items) != 6 {
		t.Fatalf("expected 6 items for 2 days x 3 slots, got %d", len(result.Items))
	}
	if len(result.Skipped) != 0 {
		t.Fatalf("expected no skipped slots, got %v", result.Skipped)
	}
	if len(f.repo.recipes) != 6 || len(f.repo.items) != 6 {
		t.Fatalf("expected 6 persisted recipes and items, got %d/%d", len(f.repo.recipes), len(f.repo.items))
	}
	if len(f.repo.plans) != 1 {
		t.Fatalf("expected one plan row, got %d", len(f.repo.plans))
	}
	for _, item := range f.repo.items {
		if item.MealPlanID != f.repo.plans[0].ID {
			t.Fatalf("item not attached to the created plan")
		}
		if item.RecipeID == uuid.Nil {
			t.Fatalf("item persisted without recipe id")
		}
	}
}

func TestGenerateFeedsPriorNamesForVariety(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	if _, err := f.service.Generate(context.Background(), userID, day("2025-06-10"), day("2025-06-11")); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Call 1 is day-one breakfast ("Receta 1"); call 4 is day-two breakfast
	// and must name it to avoid repetition.
	if len(f.llm.prompts) != 6 {
		t.Fatalf("expected 6 prompts, got %d", len(f.llm.prompts))
	}
	if !strings.Contains(f.llm.prompts[3], "Receta 1") {
		t.Fatalf("second-day breakfast prompt should list the prior breakfast name:\n%s", f.llm.prompts[3])
	}
	if strings.Contains(f.llm.prompts[0], "Receta") {
		t.Fatalf("first prompt should carry no prior names:\n%s", f.llm.prompts[0])
	}
}

func TestGenerateSkipsFailedSlotAndContinues(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	f.llm.failOn = map[int]bool{2: true}

	result, err := f.service.Generate(context.Background(), userID, day("2025-06-10"), day("2025-06-10"))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected 2 generated items, got %d", len(result.Items))
	}
	if len(result.Skipped) != 1 {
		t.Fatalf("expected 1 skipped slot, got %d", len(result.Skipped))
	}
	if result.Skipped[0].Slot != string(enums.MealSlotLunch) {
		t.Fatalf("expected lunch skipped, got %s", result.Skipped[0].Slot)
	}
	if result.Skipped[0].Date != "2025-06-10" {
		t.Fatalf("unexpected skipped date %s", result.Skipped[0].Date)
	}
}

func TestGenerateWithoutSubscriptionRejected(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)
	f.subs.sub = nil

	_, err := f.service.Generate(context.Background(), userID, day("2025-06-10"), day("2025-06-11"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeSubscriptionRequired {
		t.Fatalf("expected subscription_required, got %v", err)
	}
	if len(f.repo.plans) != 0 {
		t.Fatalf("no plan row should be created when the gate rejects")
	}
	if f.llm.calls != 0 {
		t.Fatalf("no model calls should happen when the gate rejects")
	}
}

func TestGenerateBeyondPeriodRejected(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	_, err := f.service.Generate(context.Background(), userID, day("2025-06-28"), day("2025-07-05"))
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDateAfterPeriod {
		t.Fatalf("expected date_after_period, got %v", err)
	}
}

func TestValidateDatesRunsOnlyTheGate(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	if err := f.service.ValidateDates(context.Background(), userID, day("2025-06-10"), day("2025-06-12")); err != nil {
		t.Fatalf("ValidateDates: %v", err)
	}
	if f.llm.calls != 0 || len(f.repo.plans) != 0 {
		t.Fatalf("ValidateDates must not generate anything")
	}
}

func TestReplaceMealSwapsSingleRecipe(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	planID := uuid.New()
	itemID := uuid.New()
	oldRecipeID := uuid.New()
	f.repo.existingPlan = &models.MealPlan{ID: planID, UserID: userID,
		StartDate: day("2025-06-10"), EndDate: day("2025-06-12")}
	f.repo.existingItem = &models.MealPlanItem{
		ID: itemID, MealPlanID: planID, RecipeID: oldRecipeID,
		Date: day("2025-06-11"), Slot: enums.MealSlotDinner, TargetCalories: 700,
	}

	out, err := f.service.ReplaceMeal(context.Background(), userID, itemID)
	if err != nil {
		t.Fatalf("ReplaceMeal: %v", err)
	}
	if out.RecipeID == oldRecipeID {
		t.Fatalf("replacement must mint a new recipe")
	}
	if got := f.repo.relinked[itemID]; got != out.RecipeID {
		t.Fatalf("item not relinked to new recipe, got %s", got)
	}
	if out.Slot != string(enums.MealSlotDinner) || out.Date != "2025-06-11" {
		t.Fatalf("unexpected replacement cell %s/%s", out.Date, out.Slot)
	}
	if f.llm.calls != 1 {
		t.Fatalf("expected exactly one model call, got %d", f.llm.calls)
	}
}

func TestReplaceMealForeignItemNotFound(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, userID)

	planID := uuid.New()
	itemID := uuid.New()
	f.repo.existingPlan = &models.MealPlan{ID: planID, UserID: uuid.New()}
	f.repo.existingItem = &models.MealPlanItem{ID: itemID, MealPlanID: planID, Date: day("2025-06-11")}

	_, err := f.service.ReplaceMeal(context.Background(), userID, itemID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for another user's item, got %v", err)
	}
	if f.llm.calls != 0 {
		t.Fatalf("no model call for a rejected replacement")
	}
}
