package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kalambet/kcalbot/internal/nutrition"
)

const (
	replyWelcome = "💪 kcalbot is up! Use the menu or send /help for the command list."

	replyHelp = `/add_food – log a food item
/my_calories – calories logged today
/set_goal – set a daily calorie goal
/add_weight – log your weight
/profile – your profile
/bmi – body-mass index calculator`

	replyPromptGoal   = "Enter your daily calorie goal:"
	replyPromptFood   = "What did you eat? (e.g. 200g chicken)"
	replyPromptWeight = "Enter your weight:"
	replyPromptBMI    = "Send weight and height separated by a space (e.g. 70 175)"

	replyGoalSaved   = "🎯 Goal updated!"
	replyWeightSaved = "Weight saved ✅"

	replyEnterNumber  = "Please enter a number."
	replyLookupFailed = "Couldn't find that food. Try something like \"2 eggs\" or \"100g rice\"."

	replyUnknownCommand = "Unknown command. Send /help for the list."
	replyIdleHint       = "I didn't catch that. Send /help for commands."

	replyError = "Something went wrong. Please try again later."
)

// formatNumber renders a float without trailing zeros ("330", "61.9").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func foodReply(food string, est nutrition.Estimate) string {
	return fmt.Sprintf("🍽 %s\n🔥 Calories: %s\n🥩 Protein: %s g\n🥑 Fat: %s g\n🍞 Carbs: %s g",
		food,
		formatNumber(est.Calories),
		formatNumber(est.ProteinG),
		formatNumber(est.FatG),
		formatNumber(est.CarbsG),
	)
}

func caloriesReply(total float64, goal int) string {
	return fmt.Sprintf("Today: %s kcal\nGoal: %d kcal", formatNumber(total), goal)
}

func profileReply(userID int64, goal int) string {
	return fmt.Sprintf("Your ID: %d\nDaily goal: %d kcal", userID, goal)
}

// bmiReply computes BMI from "weight height" (kg and cm), rounded to two
// decimal places. The input is guaranteed to match bmiPattern.
func bmiReply(text string) string {
	fields := strings.Fields(text)
	weight, _ := strconv.ParseFloat(fields[0], 64)
	heightCm, _ := strconv.ParseFloat(fields[1], 64)
	if heightCm == 0 {
		return replyEnterNumber
	}
	heightM := heightCm / 100
	bmi := weight / (heightM * heightM)
	return fmt.Sprintf("Your BMI: %.2f", bmi)
}
