package conversation

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/kalambet/kcalbot/internal/nutrition"
)

// state marks which follow-up input the bot is waiting for from a user.
type state int

const (
	stateIdle state = iota
	stateAwaitingGoal
	stateAwaitingFood
	stateAwaitingWeight
)

// Recognized command keywords (without the leading slash).
const (
	CmdStart      = "start"
	CmdHelp       = "help"
	CmdSetGoal    = "set_goal"
	CmdAddFood    = "add_food"
	CmdMyCalories = "my_calories"
	CmdAddWeight  = "add_weight"
	CmdProfile    = "profile"
	CmdBMI        = "bmi"
)

// bmiPattern matches two whitespace-separated positive integers
// (weight in kg and height in cm).
var bmiPattern = regexp.MustCompile(`^\d+\s+\d+$`)

// Store defines the persistence operations the engine needs.
// Implemented by storage.Store.
type Store interface {
	EnsureUser(userID int64) error
	SetGoal(userID int64, goal int) error
	GetGoal(userID int64) (int, error)
	LogFood(userID int64, food string, calories float64) error
	SumCaloriesToday(userID int64) (float64, error)
	LogWeight(userID int64, weight float64) error
}

// Lookup resolves free-text food descriptions into nutrient estimates.
// Implemented by nutrition.Client.
type Lookup interface {
	Lookup(ctx context.Context, query string) (nutrition.Estimate, error)
}

// Engine is the per-user dialogue state machine. It owns the transient
// pending-state map; all durable facts live in the Store.
type Engine struct {
	store  Store
	lookup Lookup
	logger *slog.Logger

	mu      sync.Mutex
	pending map[int64]state
}

// New creates an Engine with empty dialogue state for all users.
func New(store Store, lookup Lookup) *Engine {
	return &Engine{
		store:   store,
		lookup:  lookup,
		logger:  slog.Default(),
		pending: make(map[int64]state),
	}
}

func (e *Engine) setPending(userID int64, st state) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st == stateIdle {
		delete(e.pending, userID)
		return
	}
	e.pending[userID] = st
}

// takePending returns the user's pending state and unconditionally resets it
// to idle. A pending dialogue consumes exactly one follow-up message,
// whether or not that message turns out to be usable.
func (e *Engine) takePending(userID int64) state {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.pending[userID]
	delete(e.pending, userID)
	return st
}

// HandleCommand processes a command keyword and returns the reply text.
func (e *Engine) HandleCommand(ctx context.Context, userID int64, command string) string {
	if err := e.store.EnsureUser(userID); err != nil {
		e.logger.Error("ensuring user", "user_id", userID, "error", err)
		return replyError
	}

	switch command {
	case CmdStart:
		return replyWelcome
	case CmdHelp:
		return replyHelp
	case CmdSetGoal:
		e.setPending(userID, stateAwaitingGoal)
		return replyPromptGoal
	case CmdAddFood:
		e.setPending(userID, stateAwaitingFood)
		return replyPromptFood
	case CmdMyCalories:
		return e.todaySummary(userID)
	case CmdAddWeight:
		e.setPending(userID, stateAwaitingWeight)
		return replyPromptWeight
	case CmdProfile:
		return e.profileSummary(userID)
	case CmdBMI:
		return replyPromptBMI
	default:
		return replyUnknownCommand
	}
}

// HandleText processes a plain text message according to the user's pending
// dialogue. The pending state is consumed before anything else, so a failed
// attempt never retries; the user must reissue the initiating command.
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) string {
	if err := e.store.EnsureUser(userID); err != nil {
		e.logger.Error("ensuring user", "user_id", userID, "error", err)
		return replyError
	}

	switch e.takePending(userID) {
	case stateAwaitingGoal:
		return e.processGoal(userID, text)
	case stateAwaitingFood:
		return e.processFood(ctx, userID, text)
	case stateAwaitingWeight:
		return e.processWeight(userID, text)
	}

	// The BMI pattern only applies when no dialogue is pending; an active
	// dialogue must win over it since both can match the same input shape.
	if bmiPattern.MatchString(strings.TrimSpace(text)) {
		return bmiReply(strings.TrimSpace(text))
	}

	return replyIdleHint
}

func (e *Engine) processGoal(userID int64, text string) string {
	goal, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || goal <= 0 {
		return replyEnterNumber
	}
	if err := e.store.SetGoal(userID, goal); err != nil {
		e.logger.Error("setting goal", "user_id", userID, "error", err)
		return replyError
	}
	return replyGoalSaved
}

func (e *Engine) processFood(ctx context.Context, userID int64, text string) string {
	est, err := e.lookup.Lookup(ctx, text)
	if err != nil {
		if !errors.Is(err, nutrition.ErrNotFound) {
			e.logger.Warn("nutrition lookup failed", "error", err)
		}
		return replyLookupFailed
	}
	if err := e.store.LogFood(userID, text, est.Calories); err != nil {
		e.logger.Error("logging food", "user_id", userID, "error", err)
		return replyError
	}
	return foodReply(text, est)
}

func (e *Engine) processWeight(userID int64, text string) string {
	weight, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || weight <= 0 {
		return replyEnterNumber
	}
	if err := e.store.LogWeight(userID, weight); err != nil {
		e.logger.Error("logging weight", "user_id", userID, "error", err)
		return replyError
	}
	return replyWeightSaved
}

func (e *Engine) todaySummary(userID int64) string {
	total, err := e.store.SumCaloriesToday(userID)
	if err != nil {
		e.logger.Error("summing calories", "user_id", userID, "error", err)
		return replyError
	}
	goal, err := e.store.GetGoal(userID)
	if err != nil {
		e.logger.Error("getting goal", "user_id", userID, "error", err)
		return replyError
	}
	return caloriesReply(total, goal)
}

func (e *Engine) profileSummary(userID int64) string {
	goal, err := e.store.GetGoal(userID)
	if err != nil {
		e.logger.Error("getting goal", "user_id", userID, "error", err)
		return replyError
	}
	return profileReply(userID, goal)
}
