package mealplans

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
)

// Repository persists plans, recipes and plan items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePlan(ctx context.Context, plan *models.MealPlan) error
	CreateRecipe(ctx context.Context, recipe *models.Recipe) error
	CreateItem(ctx context.Context, item *models.MealPlanItem) error
	FindPlanByID(ctx context.Context, id uuid.UUID) (*models.MealPlan, error)
	FindItemByID(ctx context.Context, id uuid.UUID) (*models.MealPlanItem, error)
	ListItems(ctx context.Context, planID uuid.UUID) ([]models.MealPlanItem, error)
	SetItemRecipe(ctx context.Context, itemID, recipeID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePlan(ctx context.Context, plan *models.MealPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *repository) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	return r.db.WithContext(ctx).Create(recipe).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.MealPlanItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindPlanByID(ctx context.Context, id uuid.UUID) (*models.MealPlan, error) {
	var plan models.MealPlan
	err := r.db.WithContext(ctx).First(&plan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindItemByID(ctx context.Context, id uuid.UUID) (*models.MealPlanItem, error) {
	var item models.MealPlanItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListItems(ctx context.Context, planID uuid.UUID) ([]models.MealPlanItem, error) {
	var items []models.MealPlanItem
	err := r.db.WithContext(ctx).
		Where("meal_plan_id = ?", planID).
		Order("date asc, slot asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) SetItemRecipe(ctx context.Context, itemID, recipeID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.MealPlanItem{}).
		Where("id = ?", itemID).
		UpdateColumn("recipe_id", recipeID).Error
}
