package mealplans

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/entitlement"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	dbtypes "github.com/nutriplanhq/nutriplan-backend/pkg/db/types"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/llm"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

type profileSource interface {
	FindOrDefault(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
}

type subscriptionFinder interface {
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	Subscriptions     subscriptionFinder
	Profiles          profileSource
	LLM               completer
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service generates meal plans one LLM call per (day, slot), behind the
// entitlement gate.
type Service struct {
	repo     Repository
	subs     subscriptionFinder
	profiles profileSource
	llm      completer
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("meal plan repo required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription finder required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profile source required")
	}
	if params.LLM == nil {
		return nil, fmt.Errorf("llm client required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:     params.Repo,
		subs:     params.Subscriptions,
		profiles: params.Profiles,
		llm:      params.LLM,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// GeneratedItem is one filled (date, slot) cell of the answer.
type GeneratedItem struct {
	MealPlanID uuid.UUID `json:"meal_plan_id"`
	ItemID     uuid.UUID `json:"item_id"`
	RecipeID   uuid.UUID `json:"recipe_id"`
	Date       string    `json:"date"`
	Slot       string    `json:"slot"`
	RecipeName string    `json:"recipe_name"`
	Calories   int       `json:"calories"`
}

// SkippedSlot reports a (date, slot) cell the generator could not fill.
type SkippedSlot struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
}

// GenerateResult is the wire answer of the generate endpoint. Partial plans
// are a valid outcome; skipped lists what is missing.
type GenerateResult struct {
	PlanID  uuid.UUID       `json:"plan_id"`
	Items   []GeneratedItem `json:"items"`
	Skipped []SkippedSlot   `json:"skipped"`
}

// ValidateDates runs only the entitlement gate, for advisory client checks.
// The same gate runs again inside Generate; this endpoint is never an
// authorization boundary on its own.
func (s *Service) ValidateDates(ctx context.Context, userID uuid.UUID, start, end time.Time) error {
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	return entitlement.CheckRange(sub, start, end, time.Now().UTC())
}

// Generate builds a plan for [start, end]. Each (day, slot) is one LLM call
// and one transaction; a failed call skips the slot and the rest continues.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, start, end time.Time) (*GenerateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	now := time.Now().UTC()
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if err := entitlement.CheckRange(sub, start, end, now); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindOrDefault(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	startDay := dayOf(start)
	endDay := dayOf(end)
	if endDay.Before(startDay) {
		startDay, endDay = endDay, startDay
	}

	plan := &models.MealPlan{UserID: userID, StartDate: startDay, EndDate: endDay}
	if err := s.repo.CreatePlan(ctx, plan); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create meal plan")
	}

	targets := SlotTargets(profile.DailyCalorieGoal, profile.SnackPreference, profile.DietType)
	result := &GenerateResult{PlanID: plan.ID}

	// priorNames carries already-generated names per slot across days so the
	// model varies the menu.
	priorNames := map[enums.MealSlot][]string{}

	for day := startDay; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		for _, target := range targets {
			item, err := s.generateSlot(ctx, userID, plan.ID, profile, target, day, priorNames[target.Slot])
			if err != nil {
				s.logg.Error(s.logg.WithUserID(ctx, userID.String()),
					fmt.Sprintf("slot generation failed (%s %s), skipping", day.Format("2006-01-02"), target.Slot), err)
				result.Skipped = append(result.Skipped, SkippedSlot{
					Date: day.Format("2006-01-02"),
					Slot: string(target.Slot),
				})
				continue
			}
			priorNames[target.Slot] = append(priorNames[target.Slot], item.RecipeName)
			result.Items = append(result.Items, *item)
		}
	}
	return result, nil
}

// ReplaceMeal regenerates exactly one plan item through the same gate and
// prompt path.
func (s *Service) ReplaceMeal(ctx context.Context, userID, itemID uuid.UUID) (*GeneratedItem, error) {
	if userID == uuid.Nil || itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and item id are required")
	}

	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup plan item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan item not found")
	}
	plan, err := s.repo.FindPlanByID(ctx, item.MealPlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup meal plan")
	}
	if plan == nil || plan.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan item not found")
	}

	now := time.Now().UTC()
	sub, err := s.subs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if err := entitlement.CheckDate(sub, item.Date, now); err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindOrDefault(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	target := targetForSlot(profile, item.Slot)
	if item.TargetCalories > 0 {
		target.Calories = item.TargetCalories
	}

	draft, err := s.askModel(ctx, profile, target, item.Date, nil)
	if err != nil {
		return nil, err
	}

	recipe := draftToRecipe(userID, draft)
	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRecipe(ctx, recipe); err != nil {
			return err
		}
		return repo.SetItemRecipe(ctx, item.ID, recipe.ID)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist replacement recipe")
	}

	return &GeneratedItem{
		MealPlanID: item.MealPlanID,
		ItemID:     item.ID,
		RecipeID:   recipe.ID,
		Date:       item.Date.Format("2006-01-02"),
		Slot:       string(item.Slot),
		RecipeName: recipe.Name,
		Calories:   recipe.Calories,
	}, nil
}

func (s *Service) generateSlot(ctx context.Context, userID, planID uuid.UUID, profile *models.Profile, target SlotTarget, day time.Time, priorNames []string) (*GeneratedItem, error) {
	draft, err := s.askModel(ctx, profile, target, day, priorNames)
	if err != nil {
		return nil, err
	}

	recipe := draftToRecipe(userID, draft)
	item := &models.MealPlanItem{
		MealPlanID:     planID,
		Date:           day,
		Slot:           target.Slot,
		TargetCalories: target.Calories,
	}

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateRecipe(ctx, recipe); err != nil {
			return err
		}
		item.RecipeID = recipe.ID
		return repo.CreateItem(ctx, item)
	}); err != nil {
		return nil, err
	}

	return &GeneratedItem{
		MealPlanID: planID,
		ItemID:     item.ID,
		RecipeID:   recipe.ID,
		Date:       day.Format("2006-01-02"),
		Slot:       string(target.Slot),
		RecipeName: recipe.Name,
		Calories:   recipe.Calories,
	}, nil
}

func (s *Service) askModel(ctx context.Context, profile *models.Profile, target SlotTarget, day time.Time, priorNames []string) (*RecipeDraft, error) {
	raw, err := s.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: "system", Content: recipeSystemPrompt(profile.Language)},
			{Role: "user", Content: buildRecipePrompt(profile, target, day, priorNames)},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}
	return ParseRecipe(raw)
}

func draftToRecipe(userID uuid.UUID, draft *RecipeDraft) *models.Recipe {
	return &models.Recipe{
		UserID:       userID,
		Name:         draft.Name,
		Description:  draft.Description,
		Ingredients:  dbtypes.StringArray(draft.Ingredients),
		Instructions: dbtypes.StringArray(draft.Instructions),
		Calories:     draft.Calories,
		ProteinGrams: draft.ProteinGrams,
		CarbsGrams:   draft.CarbsGrams,
		FatGrams:     draft.FatGrams,
		PrepMinutes:  draft.PrepMinutes,
	}
}

func targetForSlot(profile *models.Profile, slot enums.MealSlot) SlotTarget {
	for _, target := range SlotTargets(profile.DailyCalorieGoal, profile.SnackPreference, profile.DietType) {
		if target.Slot == slot {
			return target
		}
	}
	// Slot not present under the current preference; budget it like a snack.
	macros := MacroSplitFor(profile.DietType)
	calories := profile.DailyCalorieGoal / 10
	return SlotTarget{
		Slot:         slot,
		Calories:     calories,
		ProteinGrams: calories * macros.ProteinPct / 100 / 4,
		CarbsGrams:   calories * macros.CarbsPct / 100 / 4,
		FatGrams:     calories * macros.FatPct / 100 / 9,
	}
}

func dayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
