package profiles

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	dbtypes "github.com/nutriplanhq/nutriplan-backend/pkg/db/types"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Profile{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewRepository(conn)
}

func TestFindOrDefaultFallsBack(t *testing.T) {
	repo := newTestRepo(t)
	userID := uuid.New()

	profile, err := repo.FindOrDefault(context.Background(), userID)
	if err != nil {
		t.Fatalf("find or default: %v", err)
	}
	if profile.DailyCalorieGoal != 2000 || profile.DietType != enums.DietTypeBalanced {
		t.Fatalf("unexpected default: %+v", profile)
	}
	if profile.Language != "es" {
		t.Fatalf("default language must be es, got %q", profile.Language)
	}
}

func TestUpsertKeyedOnUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	first := &models.Profile{
		UserID:           userID,
		DailyCalorieGoal: 1800,
		DietType:         enums.DietTypeKeto,
		SnackPreference:  enums.SnackPreferenceFourMeals,
		Allergies:        dbtypes.StringArray{"maní"},
		Language:         "es",
	}
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := &models.Profile{
		UserID:           userID,
		DailyCalorieGoal: 2200,
		DietType:         enums.DietTypeAthlete,
		SnackPreference:  enums.SnackPreferenceFiveMeals,
		Language:         "en",
	}
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	stored, err := repo.FindByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if stored == nil || stored.DailyCalorieGoal != 2200 || stored.DietType != enums.DietTypeAthlete {
		t.Fatalf("expected overwritten profile, got %+v", stored)
	}

	var count int64
	if err := repo.db.Model(&models.Profile{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row per user, got %d", count)
	}
}
