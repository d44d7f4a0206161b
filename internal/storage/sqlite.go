package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Clock abstracts "today" so tests can pin the current day.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store wraps a SQLite database with methods for users, food entries, and
// weight entries.
type Store struct {
	db    *sql.DB
	clock Clock
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	return OpenWithClock(dataDir, realClock{})
}

// OpenWithClock is Open with a custom clock for day stamping.
func OpenWithClock(dataDir string, clock Clock) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "kcalbot.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db, clock: clock}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// today returns the current process-local calendar day as YYYY-MM-DD.
func (s *Store) today() string {
	return s.clock.Now().Format("2006-01-02")
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Users ---

// EnsureUser inserts a user row with the default goal if one does not exist.
// Idempotent; existing rows are left untouched.
func (s *Store) EnsureUser(userID int64) error {
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO users (user_id, goal) VALUES (?, ?)",
		userID, DefaultDailyGoal,
	)
	return err
}

// SetGoal overwrites the user's daily calorie goal. Updating a user that has
// no row affects zero rows and is not an error; callers that care must
// EnsureUser first.
func (s *Store) SetGoal(userID int64, goal int) error {
	_, err := s.db.Exec("UPDATE users SET goal = ? WHERE user_id = ?", goal, userID)
	return err
}

// GetGoal returns the user's daily calorie goal, or DefaultDailyGoal when the
// user has never been seen.
func (s *Store) GetGoal(userID int64) (int, error) {
	var goal int
	err := s.db.QueryRow("SELECT goal FROM users WHERE user_id = ?", userID).Scan(&goal)
	if err == sql.ErrNoRows {
		return DefaultDailyGoal, nil
	}
	if err != nil {
		return 0, err
	}
	return goal, nil
}

// --- Food log ---

// LogFood appends a food entry stamped with the current day.
func (s *Store) LogFood(userID int64, food string, calories float64) error {
	_, err := s.db.Exec(
		"INSERT INTO food_log (user_id, food, calories, date) VALUES (?, ?, ?, ?)",
		userID, food, calories, s.today(),
	)
	return err
}

// SumCaloriesToday returns the total calories the user logged today, or 0
// when nothing was logged.
func (s *Store) SumCaloriesToday(userID int64) (float64, error) {
	var total float64
	err := s.db.QueryRow(
		"SELECT COALESCE(SUM(calories), 0) FROM food_log WHERE user_id = ? AND date = ?",
		userID, s.today(),
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// RecentFood returns the user's most recent food entries, newest first.
func (s *Store) RecentFood(userID int64, limit int) ([]FoodEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, food, calories, date FROM food_log WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FoodEntry
	for rows.Next() {
		var e FoodEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Food, &e.Calories, &e.Date); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// --- Weight log ---

// LogWeight appends a weight entry stamped with the current day.
func (s *Store) LogWeight(userID int64, weight float64) error {
	_, err := s.db.Exec(
		"INSERT INTO weight_log (user_id, weight, date) VALUES (?, ?, ?)",
		userID, weight, s.today(),
	)
	return err
}

// RecentWeights returns the user's most recent weight entries, newest first.
func (s *Store) RecentWeights(userID int64, limit int) ([]WeightEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, weight, date FROM weight_log WHERE user_id = ? ORDER BY id DESC LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WeightEntry
	for rows.Next() {
		var e WeightEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Weight, &e.Date); err != nil {
			return nil, err
		}
		results = append(results, e)
	}
	return results, rows.Err()
}
