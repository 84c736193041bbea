package enums

import "fmt"

// MealSlot identifies one meal position within a planned day.
type MealSlot string

const (
	MealSlotBreakfast     MealSlot = "breakfast"
	MealSlotMorningSnack  MealSlot = "morning_snack"
	MealSlotLunch         MealSlot = "lunch"
	MealSlotAfternoonSnack MealSlot = "afternoon_snack"
	MealSlotDinner        MealSlot = "dinner"
)

var validMealSlots = []MealSlot{
	MealSlotBreakfast,
	MealSlotMorningSnack,
	MealSlotLunch,
	MealSlotAfternoonSnack,
	MealSlotDinner,
}

// String implements fmt.Stringer.
func (m MealSlot) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m MealSlot) IsValid() bool {
	for _, candidate := range validMealSlots {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMealSlot converts raw input into a MealSlot.
func ParseMealSlot(value string) (MealSlot, error) {
	for _, candidate := range validMealSlots {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid meal slot %q", value)
}
