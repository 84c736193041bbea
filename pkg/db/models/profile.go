package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/nutriplanhq/nutriplan-backend/pkg/db/types"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Profile holds the nutrition preferences the generator and chat prompt
// builders read. One row per user.
type Profile struct {
	ID               uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID           uuid.UUID             `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	DailyCalorieGoal int                   `gorm:"column:daily_calorie_goal;not null;default:2000"`
	DietType         enums.DietType        `gorm:"column:diet_type;not null;default:'balanced'"`
	SnackPreference  enums.SnackPreference `gorm:"column:snack_preference;not null;default:'3meals'"`
	Allergies        dbtypes.StringArray   `gorm:"column:allergies;type:text[]"`
	DislikedFoods    dbtypes.StringArray   `gorm:"column:disliked_foods;type:text[]"`
	Language         string                `gorm:"column:language;not null;default:'es'"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
