package profiles

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Repository reads and writes nutrition profiles. The generator and chat
// paths only ever read; writes come from the profile settings endpoint.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUserID returns the user's profile, nil when none was saved yet.
func (r *Repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindOrDefault never fails the caller on a missing row: generation and chat
// fall back to a balanced 2000 kcal Spanish-language profile.
func (r *Repository) FindOrDefault(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := r.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return DefaultProfile(userID), nil
	}
	return profile, nil
}

// Upsert saves the profile keyed on user_id.
func (r *Repository) Upsert(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).
		Create(profile).Error
}

// DefaultProfile is the stand-in used before the user saves preferences.
func DefaultProfile(userID uuid.UUID) *models.Profile {
	return &models.Profile{
		UserID:           userID,
		DailyCalorieGoal: 2000,
		DietType:         enums.DietTypeBalanced,
		SnackPreference:  enums.SnackPreferenceThreeMeals,
		Language:         "es",
	}
}
