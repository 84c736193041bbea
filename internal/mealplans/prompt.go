package mealplans

import (
	"fmt"
	"strings"
	"time"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

var slotLabelsES = map[enums.MealSlot]string{
	enums.MealSlotBreakfast:      "desayuno",
	enums.MealSlotMorningSnack:   "colación de media mañana",
	enums.MealSlotLunch:          "almuerzo",
	enums.MealSlotAfternoonSnack: "merienda",
	enums.MealSlotDinner:         "cena",
}

var slotLabelsEN = map[enums.MealSlot]string{
	enums.MealSlotBreakfast:      "breakfast",
	enums.MealSlotMorningSnack:   "mid-morning snack",
	enums.MealSlotLunch:          "lunch",
	enums.MealSlotAfternoonSnack: "afternoon snack",
	enums.MealSlotDinner:         "dinner",
}

// SlotLabel localizes a meal slot for prompts and notifications.
func SlotLabel(slot enums.MealSlot, language string) string {
	if language == "en" {
		if label, ok := slotLabelsEN[slot]; ok {
			return label
		}
	}
	if label, ok := slotLabelsES[slot]; ok {
		return label
	}
	return string(slot)
}

// recipeSystemPrompt pins the output contract. The model must answer with a
// single JSON object and nothing else; the parser tolerates fenced blocks but
// not prose.
func recipeSystemPrompt(language string) string {
	if language == "en" {
		return "You are a professional nutritionist. Answer with exactly one JSON object, no prose, with keys: " +
			`name, description, ingredients (array of strings), instructions (array of strings), ` +
			`calories, protein_grams, carbs_grams, fat_grams, prep_minutes (all integers).`
	}
	return "Sos un nutricionista profesional. Respondé con exactamente un objeto JSON, sin texto adicional, con las claves: " +
		`name, description, ingredients (lista de strings), instructions (lista de strings), ` +
		`calories, protein_grams, carbs_grams, fat_grams, prep_minutes (todos enteros).`
}

// buildRecipePrompt assembles the user message for one (day, slot) cell.
// priorNames carries recipes already generated for the same slot so the model
// varies the menu; it is advice, not a guarantee.
func buildRecipePrompt(profile *models.Profile, target SlotTarget, date time.Time, priorNames []string) string {
	language := profile.Language
	var b strings.Builder

	if language == "en" {
		fmt.Fprintf(&b, "Create a %s recipe for %s.\n", SlotLabel(target.Slot, language), date.Format("Monday 2006-01-02"))
		fmt.Fprintf(&b, "Targets: %d kcal, %dg protein, %dg carbs, %dg fat.\n",
			target.Calories, target.ProteinGrams, target.CarbsGrams, target.FatGrams)
		fmt.Fprintf(&b, "Diet type: %s.\n", profile.DietType)
		if len(profile.Allergies) > 0 {
			fmt.Fprintf(&b, "Strictly avoid these allergens: %s.\n", strings.Join(profile.Allergies, ", "))
		}
		if len(profile.DislikedFoods) > 0 {
			fmt.Fprintf(&b, "Do not use: %s.\n", strings.Join(profile.DislikedFoods, ", "))
		}
		if len(priorNames) > 0 {
			fmt.Fprintf(&b, "Already planned for this slot, do not repeat: %s.\n", strings.Join(priorNames, "; "))
		}
		return b.String()
	}

	fmt.Fprintf(&b, "Creá una receta de %s para el %s.\n", SlotLabel(target.Slot, language), date.Format("2006-01-02"))
	fmt.Fprintf(&b, "Objetivos: %d kcal, %dg de proteína, %dg de carbohidratos, %dg de grasas.\n",
		target.Calories, target.ProteinGrams, target.CarbsGrams, target.FatGrams)
	fmt.Fprintf(&b, "Tipo de dieta: %s.\n", profile.DietType)
	if len(profile.Allergies) > 0 {
		fmt.Fprintf(&b, "Evitá estrictamente estos alérgenos: %s.\n", strings.Join(profile.Allergies, ", "))
	}
	if len(profile.DislikedFoods) > 0 {
		fmt.Fprintf(&b, "No uses: %s.\n", strings.Join(profile.DislikedFoods, ", "))
	}
	if len(priorNames) > 0 {
		fmt.Fprintf(&b, "Ya planificado para esta comida, no repitas: %s.\n", strings.Join(priorNames, "; "))
	}
	return b.String()
}
