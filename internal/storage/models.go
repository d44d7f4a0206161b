package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DefaultDailyGoal is the calorie goal assigned to new users and reported
// for users that have no row yet. Both the insert and the read path use
// this constant so the two defaults cannot drift apart.
const DefaultDailyGoal = 2500

// FoodEntry is one logged food item. Entries are append-only.
type FoodEntry struct {
	ID       int64
	UserID   int64
	Food     string
	Calories float64
	Date     string // YYYY-MM-DD, process-local day
}

// WeightEntry is one logged body weight measurement. Entries are append-only.
type WeightEntry struct {
	ID     int64
	UserID int64
	Weight float64
	Date   string // YYYY-MM-DD, process-local day
}
