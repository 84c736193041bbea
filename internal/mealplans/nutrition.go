package mealplans

import (
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// MacroSplit is the protein/carbs/fat percentage distribution for a diet.
// The three values always sum to 100.
type MacroSplit struct {
	ProteinPct int
	CarbsPct   int
	FatPct     int
}

// SlotTarget is the nutrition budget for one meal slot of one day.
type SlotTarget struct {
	Slot         enums.MealSlot
	Calories     int
	ProteinGrams int
	CarbsGrams   int
	FatGrams     int
}

type slotShare struct {
	slot    enums.MealSlot
	percent int
}

// calorieSplits keys the fixed per-slot percentage tables by meals-per-day
// preference. Each table sums to 100.
var calorieSplits = map[enums.SnackPreference][]slotShare{
	enums.SnackPreferenceThreeMeals: {
		{enums.MealSlotBreakfast, 25},
		{enums.MealSlotLunch, 40},
		{enums.MealSlotDinner, 35},
	},
	enums.SnackPreferenceFourMeals: {
		{enums.MealSlotBreakfast, 25},
		{enums.MealSlotLunch, 35},
		{enums.MealSlotDinner, 30},
		{enums.MealSlotAfternoonSnack, 10},
	},
	enums.SnackPreferenceFiveMeals: {
		{enums.MealSlotBreakfast, 20},
		{enums.MealSlotMorningSnack, 10},
		{enums.MealSlotLunch, 35},
		{enums.MealSlotAfternoonSnack, 10},
		{enums.MealSlotDinner, 25},
	},
}

var macroSplits = map[enums.DietType]MacroSplit{
	enums.DietTypeBalanced:            {ProteinPct: 25, CarbsPct: 50, FatPct: 25},
	enums.DietTypeKeto:                {ProteinPct: 25, CarbsPct: 5, FatPct: 70},
	enums.DietTypePaleo:               {ProteinPct: 30, CarbsPct: 25, FatPct: 45},
	enums.DietTypeVegetarian:          {ProteinPct: 20, CarbsPct: 55, FatPct: 25},
	enums.DietTypeVegan:               {ProteinPct: 20, CarbsPct: 55, FatPct: 25},
	enums.DietTypeAthlete:             {ProteinPct: 35, CarbsPct: 45, FatPct: 20},
	enums.DietTypeIntermittentFasting: {ProteinPct: 30, CarbsPct: 40, FatPct: 30},
}

// MacroSplitFor returns the macro distribution for a diet, balanced when the
// diet is unknown.
func MacroSplitFor(diet enums.DietType) MacroSplit {
	if split, ok := macroSplits[diet]; ok {
		return split
	}
	return macroSplits[enums.DietTypeBalanced]
}

// SlotTargets expands a daily calorie goal into per-slot budgets with macro
// gram targets (protein/carbs 4 kcal per gram, fat 9).
func SlotTargets(dailyCalories int, pref enums.SnackPreference, diet enums.DietType) []SlotTarget {
	shares, ok := calorieSplits[pref]
	if !ok {
		shares = calorieSplits[enums.SnackPreferenceThreeMeals]
	}
	macros := MacroSplitFor(diet)

	targets := make([]SlotTarget, 0, len(shares))
	for _, share := range shares {
		calories := dailyCalories * share.percent / 100
		targets = append(targets, SlotTarget{
			Slot:         share.slot,
			Calories:     calories,
			ProteinGrams: calories * macros.ProteinPct / 100 / 4,
			CarbsGrams:   calories * macros.CarbsPct / 100 / 4,
			FatGrams:     calories * macros.FatPct / 100 / 9,
		})
	}
	return targets
}
