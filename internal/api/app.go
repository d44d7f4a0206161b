package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/kcalbot/internal/storage"
)

const recentEntriesLimit = 10

// AppDeps bundles the dependencies of the ops HTTP API.
type AppDeps struct {
	Store *storage.Store
	// Token guards the /v1 routes with bearer auth. When empty, only
	// /health is exposed.
	Token string
}

// NewAppHandler returns the ops API handler: an unauthenticated health check
// plus per-user summary routes for deployment tooling.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	if deps.Token != "" {
		r.Route("/v1", func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Get("/users/{userID}/summary", handleUserSummary(deps))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// UserSummary is the JSON response of GET /v1/users/{userID}/summary.
type UserSummary struct {
	UserID        int64                 `json:"user_id"`
	Goal          int                   `json:"goal"`
	CaloriesToday float64               `json:"calories_today"`
	RecentFood    []FoodEntryResponse   `json:"recent_food"`
	RecentWeights []WeightEntryResponse `json:"recent_weights"`
}

type FoodEntryResponse struct {
	Food     string  `json:"food"`
	Calories float64 `json:"calories"`
	Date     string  `json:"date"`
}

type WeightEntryResponse struct {
	Weight float64 `json:"weight"`
	Date   string  `json:"date"`
}

func handleUserSummary(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid user id")
			return
		}

		goal, err := deps.Store.GetGoal(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reading goal: %v", err)
			return
		}
		total, err := deps.Store.SumCaloriesToday(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "summing calories: %v", err)
			return
		}
		food, err := deps.Store.RecentFood(userID, recentEntriesLimit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing food entries: %v", err)
			return
		}
		weights, err := deps.Store.RecentWeights(userID, recentEntriesLimit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing weight entries: %v", err)
			return
		}

		summary := UserSummary{
			UserID:        userID,
			Goal:          goal,
			CaloriesToday: total,
			RecentFood:    make([]FoodEntryResponse, 0, len(food)),
			RecentWeights: make([]WeightEntryResponse, 0, len(weights)),
		}
		for _, e := range food {
			summary.RecentFood = append(summary.RecentFood, FoodEntryResponse{
				Food:     e.Food,
				Calories: e.Calories,
				Date:     e.Date,
			})
		}
		for _, e := range weights {
			summary.RecentWeights = append(summary.RecentWeights, WeightEntryResponse{
				Weight: e.Weight,
				Date:   e.Date,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(summary)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
