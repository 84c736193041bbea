package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// MealPlanItem binds one recipe to one (date, slot) cell of a plan.
type MealPlanItem struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MealPlanID     uuid.UUID      `gorm:"column:meal_plan_id;type:uuid;not null;index"`
	RecipeID       uuid.UUID      `gorm:"column:recipe_id;type:uuid;not null"`
	Date           time.Time      `gorm:"column:date;not null"`
	Slot           enums.MealSlot `gorm:"column:slot;not null"`
	TargetCalories int            `gorm:"column:target_calories;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
