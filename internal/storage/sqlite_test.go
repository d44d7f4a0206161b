package storage

import (
	"fmt"
	"testing"
	"time"
)

// fixedClock pins "today" for deterministic date stamping.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestIndexesExist verifies the per-user per-day indexes are created by the migration.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{"idx_food_log_user_date", "idx_weight_log_user_date"}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestGetGoal_DefaultForUnknownUser(t *testing.T) {
	s := openTestStore(t)

	goal, err := s.GetGoal(999)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if goal != DefaultDailyGoal {
		t.Errorf("GetGoal(unknown) = %d, want %d", goal, DefaultDailyGoal)
	}
}

func TestEnsureUser_Idempotent(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(42); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.SetGoal(42, 1800); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}

	// A second EnsureUser must not reset the goal to the default.
	if err := s.EnsureUser(42); err != nil {
		t.Fatalf("second EnsureUser: %v", err)
	}

	goal, err := s.GetGoal(42)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if goal != 1800 {
		t.Errorf("goal after second EnsureUser = %d, want 1800", goal)
	}
}

func TestSetGoal_RoundTrip(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(1); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}

	for _, g := range []int{1, 1500, 2500, 4000} {
		if err := s.SetGoal(1, g); err != nil {
			t.Fatalf("SetGoal(%d): %v", g, err)
		}
		got, err := s.GetGoal(1)
		if err != nil {
			t.Fatalf("GetGoal: %v", err)
		}
		if got != g {
			t.Errorf("GetGoal = %d, want %d", got, g)
		}
	}
}

// TestSetGoal_MissingUserIsNoOp verifies updating an absent user affects
// nothing and does not create a row.
func TestSetGoal_MissingUserIsNoOp(t *testing.T) {
	s := openTestStore(t)

	if err := s.SetGoal(7, 1234); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE user_id = 7").Scan(&count); err != nil {
		t.Fatalf("counting users: %v", err)
	}
	if count != 0 {
		t.Errorf("SetGoal created a user row, want none")
	}
}

func TestSumCaloriesToday_EmptyIsZero(t *testing.T) {
	s := openTestStore(t)

	total, err := s.SumCaloriesToday(42)
	if err != nil {
		t.Fatalf("SumCaloriesToday: %v", err)
	}
	if total != 0 {
		t.Errorf("SumCaloriesToday(no entries) = %v, want 0", total)
	}
}

func TestSumCaloriesToday_SumsOnlyOwnEntries(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(42); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.SetGoal(42, 2000); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}
	if err := s.LogFood(42, "200g chicken", 330); err != nil {
		t.Fatalf("LogFood: %v", err)
	}
	if err := s.LogFood(42, "apple", 95); err != nil {
		t.Fatalf("LogFood: %v", err)
	}

	// Another user's entries must not leak into the sum.
	if err := s.EnsureUser(43); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.LogFood(43, "pizza", 800); err != nil {
		t.Fatalf("LogFood: %v", err)
	}

	total, err := s.SumCaloriesToday(42)
	if err != nil {
		t.Fatalf("SumCaloriesToday: %v", err)
	}
	if total != 425 {
		t.Errorf("SumCaloriesToday = %v, want 425", total)
	}

	goal, err := s.GetGoal(42)
	if err != nil {
		t.Fatalf("GetGoal: %v", err)
	}
	if goal != 2000 {
		t.Errorf("GetGoal = %d, want 2000", goal)
	}
}

// TestSumCaloriesToday_ExcludesOtherDays pins the clock to one day, logs,
// then moves the clock forward and verifies yesterday's entries drop out.
func TestSumCaloriesToday_ExcludesOtherDays(t *testing.T) {
	clock := &fixedClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	s, err := OpenWithClock(":memory:", clock)
	if err != nil {
		t.Fatalf("OpenWithClock: %v", err)
	}
	defer s.Close()

	if err := s.EnsureUser(1); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.LogFood(1, "toast", 150); err != nil {
		t.Fatalf("LogFood: %v", err)
	}

	s.clock = fixedClock{now: clock.now.Add(24 * time.Hour)}

	total, err := s.SumCaloriesToday(1)
	if err != nil {
		t.Fatalf("SumCaloriesToday: %v", err)
	}
	if total != 0 {
		t.Errorf("SumCaloriesToday next day = %v, want 0", total)
	}
}

func TestLogWeight_AndRecentWeights(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(5); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	for _, w := range []float64{80.5, 80.1, 79.8} {
		if err := s.LogWeight(5, w); err != nil {
			t.Fatalf("LogWeight(%v): %v", w, err)
		}
	}

	entries, err := s.RecentWeights(5, 2)
	if err != nil {
		t.Fatalf("RecentWeights: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Weight != 79.8 || entries[1].Weight != 80.1 {
		t.Errorf("entries not newest-first: %v, %v", entries[0].Weight, entries[1].Weight)
	}
	if entries[0].Date != s.today() {
		t.Errorf("entry date = %q, want %q", entries[0].Date, s.today())
	}
}

func TestRecentFood_NewestFirst(t *testing.T) {
	s := openTestStore(t)

	if err := s.EnsureUser(9); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := s.LogFood(9, fmt.Sprintf("item-%d", i), float64(100+i)); err != nil {
			t.Fatalf("LogFood: %v", err)
		}
	}

	entries, err := s.RecentFood(9, 3)
	if err != nil {
		t.Fatalf("RecentFood: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[0].Food != "item-4" {
		t.Errorf("entries[0].Food = %q, want item-4", entries[0].Food)
	}
}

// TestFreeTextDescriptionsAreSafe logs a description full of SQL
// metacharacters and verifies it round-trips untouched.
func TestFreeTextDescriptionsAreSafe(t *testing.T) {
	s := openTestStore(t)

	desc := `'); DROP TABLE food_log; --`
	if err := s.EnsureUser(3); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if err := s.LogFood(3, desc, 10); err != nil {
		t.Fatalf("LogFood: %v", err)
	}

	entries, err := s.RecentFood(3, 1)
	if err != nil {
		t.Fatalf("RecentFood: %v", err)
	}
	if len(entries) != 1 || entries[0].Food != desc {
		t.Errorf("description did not round-trip: %+v", entries)
	}
}
