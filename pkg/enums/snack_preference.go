package enums

// SnackPreference is how many meals per day the user wants planned.
type SnackPreference string

const (
	SnackPreferenceThreeMeals SnackPreference = "3meals"
	SnackPreferenceFourMeals  SnackPreference = "4meals"
	SnackPreferenceFiveMeals  SnackPreference = "5meals"
)

var validSnackPreferences = []SnackPreference{
	SnackPreferenceThreeMeals,
	SnackPreferenceFourMeals,
	SnackPreferenceFiveMeals,
}

// IsValid reports whether the value is known.
func (s SnackPreference) IsValid() bool {
	for _, candidate := range validSnackPreferences {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSnackPreference converts raw input, defaulting to three meals.
func ParseSnackPreference(value string) SnackPreference {
	for _, candidate := range validSnackPreferences {
		if string(candidate) == value {
			return candidate
		}
	}
	return SnackPreferenceThreeMeals
}
