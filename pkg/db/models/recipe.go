package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/nutriplanhq/nutriplan-backend/pkg/db/types"
)

// Recipe is one generated dish with its macro breakdown. Rows are written by
// the meal plan generator and referenced by plan items.
type Recipe struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Name         string              `gorm:"type:text;not null"`
	Description  string              `gorm:"type:text"`
	Ingredients  dbtypes.StringArray `gorm:"column:ingredients;type:text[]"`
	Instructions dbtypes.StringArray `gorm:"column:instructions;type:text[]"`
	Calories     int                 `gorm:"column:calories;not null"`
	ProteinGrams int                 `gorm:"column:protein_grams;not null"`
	CarbsGrams   int                 `gorm:"column:carbs_grams;not null"`
	FatGrams     int                 `gorm:"column:fat_grams;not null"`
	PrepMinutes  int                 `gorm:"column:prep_minutes"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}
