package enums

// DietType selects the macro split used when generating meal plans.
type DietType string

const (
	DietTypeBalanced            DietType = "balanced"
	DietTypeKeto                DietType = "keto"
	DietTypePaleo               DietType = "paleo"
	DietTypeVegetarian          DietType = "vegetarian"
	DietTypeVegan               DietType = "vegan"
	DietTypeAthlete             DietType = "athlete"
	DietTypeIntermittentFasting DietType = "intermittent_fasting"
)

var validDietTypes = []DietType{
	DietTypeBalanced,
	DietTypeKeto,
	DietTypePaleo,
	DietTypeVegetarian,
	DietTypeVegan,
	DietTypeAthlete,
	DietTypeIntermittentFasting,
}

// IsValid reports whether the value is known.
func (d DietType) IsValid() bool {
	for _, candidate := range validDietTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDietType converts raw input into a DietType, defaulting to balanced.
func ParseDietType(value string) DietType {
	for _, candidate := range validDietTypes {
		if string(candidate) == value {
			return candidate
		}
	}
	return DietTypeBalanced
}
