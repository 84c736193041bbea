package chat

import (
	"fmt"
	"strings"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
)

// systemPrompt personalizes the assistant with the user's profile. Language,
// diet, calorie goal and exclusions all come from the profile row; the free
// tier still gets a profile through FindOrDefault, so this never branches on
// subscription state.
func systemPrompt(profile *models.Profile) string {
	var b strings.Builder

	if profile.Language == "en" {
		b.WriteString("You are NutriPlan, a friendly professional nutritionist assistant. ")
		b.WriteString("Answer questions about recipes, nutrition and meal planning. ")
		b.WriteString("Keep answers practical and concise. Answer in English.\n")
		fmt.Fprintf(&b, "The user follows a %s diet with a daily goal of %d kcal.\n",
			profile.DietType, profile.DailyCalorieGoal)
		if len(profile.Allergies) > 0 {
			fmt.Fprintf(&b, "Never suggest ingredients containing: %s.\n", strings.Join(profile.Allergies, ", "))
		}
		if len(profile.DislikedFoods) > 0 {
			fmt.Fprintf(&b, "The user dislikes: %s. Avoid them unless asked.\n", strings.Join(profile.DislikedFoods, ", "))
		}
		return b.String()
	}

	b.WriteString("Sos NutriPlan, un asistente nutricionista profesional y cercano. ")
	b.WriteString("Respondé preguntas sobre recetas, nutrición y planificación de comidas. ")
	b.WriteString("Mantené las respuestas prácticas y concisas. Respondé en español.\n")
	fmt.Fprintf(&b, "El usuario sigue una dieta %s con un objetivo diario de %d kcal.\n",
		profile.DietType, profile.DailyCalorieGoal)
	if len(profile.Allergies) > 0 {
		fmt.Fprintf(&b, "Nunca sugieras ingredientes que contengan: %s.\n", strings.Join(profile.Allergies, ", "))
	}
	if len(profile.DislikedFoods) > 0 {
		fmt.Fprintf(&b, "Al usuario no le gustan: %s. Evitalos salvo pedido explícito.\n", strings.Join(profile.DislikedFoods, ", "))
	}
	return b.String()
}
