package mealplans

import (
	"encoding/json"
	"strings"

	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
)

// RecipeDraft is the JSON contract the model must answer with.
type RecipeDraft struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Calories     int      `json:"calories"`
	ProteinGrams int      `json:"protein_grams"`
	CarbsGrams   int      `json:"carbs_grams"`
	FatGrams     int      `json:"fat_grams"`
	PrepMinutes  int      `json:"prep_minutes"`
}

// ParseRecipe decodes a model response into a draft. Models occasionally wrap
// the object in a fenced code block despite instructions, so fences and
// surrounding noise outside the outermost braces are stripped before decoding.
func ParseRecipe(raw string) (*RecipeDraft, error) {
	payload := extractJSONObject(raw)
	if payload == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "response contains no JSON object")
	}

	var draft RecipeDraft
	if err := json.Unmarshal([]byte(payload), &draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode recipe response")
	}

	if strings.TrimSpace(draft.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipe name missing")
	}
	if len(draft.Ingredients) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipe ingredients missing")
	}
	if len(draft.Instructions) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipe instructions missing")
	}
	if draft.Calories <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "recipe calories missing")
	}
	return &draft, nil
}

func extractJSONObject(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return ""
	}
	return cleaned[start : end+1]
}
