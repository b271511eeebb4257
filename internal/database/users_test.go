package database

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	// A second run must be a no-op, not an error
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate returned error: %v", err)
	}

	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'users'").Scan(&count)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one users table, got %d", count)
	}

	if _, err := db.CreateUser("Alice"); err != nil {
		t.Fatalf("CreateUser after double migrate returned error: %v", err)
	}
}

func TestCreateUser_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateUser("Alice")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected first id 1, got %d", id)
	}

	saved, err := db.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID returned error: %v", err)
	}
	if saved == nil {
		t.Fatal("expected user to be saved")
	}
	if saved.ID != id || saved.Name != "Alice" {
		t.Fatalf("expected id=%d name=Alice, got id=%d name=%q", id, saved.ID, saved.Name)
	}
	if saved.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be populated by the store")
	}

	byName, err := db.GetUserByName("Alice")
	if err != nil {
		t.Fatalf("GetUserByName returned error: %v", err)
	}
	if byName == nil || byName.ID != id {
		t.Fatalf("expected GetUserByName to find id %d, got %+v", id, byName)
	}

	// Lookup trims before matching
	trimmed, err := db.GetUserByName("  Alice  ")
	if err != nil {
		t.Fatalf("GetUserByName with padding returned error: %v", err)
	}
	if trimmed == nil || trimmed.ID != id {
		t.Fatalf("expected padded lookup to find id %d, got %+v", id, trimmed)
	}
}

func TestCreateUser_TrimsBeforeInsert(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateUser("  Bob  ")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	saved, err := db.GetUserByID(id)
	if err != nil || saved == nil {
		t.Fatalf("expected user saved, got (%+v, %v)", saved, err)
	}
	if saved.Name != "Bob" {
		t.Fatalf("expected trimmed name stored, got %q", saved.Name)
	}

	byName, err := db.GetUserByName("Bob")
	if err != nil {
		t.Fatalf("GetUserByName returned error: %v", err)
	}
	if byName == nil || byName.ID != id {
		t.Fatalf("expected padded create reachable by name, got %+v", byName)
	}
}

func TestGetUser_AbsenceIsNotAnError(t *testing.T) {
	db := newTestDB(t)

	for _, id := range []int64{0, -5, 999} {
		user, err := db.GetUserByID(id)
		if err != nil {
			t.Fatalf("GetUserByID(%d) returned error: %v", id, err)
		}
		if user != nil {
			t.Fatalf("GetUserByID(%d) expected absent, got %+v", id, user)
		}
	}

	user, err := db.GetUserByName("nobody")
	if err != nil {
		t.Fatalf("GetUserByName returned error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected absent, got %+v", user)
	}

	// Blank names short-circuit without a store round-trip
	user, err = db.GetUserByName("   ")
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for blank name, got (%+v, %v)", user, err)
	}
}

func TestCreateUser_DuplicateNameConflicts(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.CreateUser("Alice"); err != nil {
		t.Fatalf("first CreateUser returned error: %v", err)
	}

	_, err := db.CreateUser("Alice")
	if err == nil {
		t.Fatal("expected duplicate name to conflict")
	}
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestCreateUser_RejectsEmptyName(t *testing.T) {
	db := newTestDB(t)

	for _, name := range []string{"", "   "} {
		_, err := db.CreateUser(name)
		if err == nil {
			t.Fatalf("expected error for name %q", name)
		}
		if errors.Is(err, ErrNameTaken) {
			t.Fatalf("empty name must not report a conflict, got %v", err)
		}
	}
}

func TestCreateUser_InjectionStoredAsData(t *testing.T) {
	db := newTestDB(t)

	hostile := "'; DROP TABLE users; --"
	id, err := db.CreateUser(hostile)
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	saved, err := db.GetUserByName(hostile)
	if err != nil {
		t.Fatalf("GetUserByName returned error: %v", err)
	}
	if saved == nil || saved.ID != id || saved.Name != hostile {
		t.Fatalf("expected hostile name stored verbatim, got %+v", saved)
	}

	// Table must still exist and accept inserts
	if _, err := db.CreateUser("Alice"); err != nil {
		t.Fatalf("CreateUser after injection attempt returned error: %v", err)
	}
	count, err := db.CountUsers()
	if err != nil {
		t.Fatalf("CountUsers returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 users, got %d", count)
	}
}

func TestSetUserPassword(t *testing.T) {
	db := newTestDB(t)

	id, err := db.CreateUser("Alice")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	if err := db.SetUserPassword(id, "opaque-hash"); err != nil {
		t.Fatalf("SetUserPassword returned error: %v", err)
	}
	saved, err := db.GetUserByID(id)
	if err != nil {
		t.Fatalf("GetUserByID returned error: %v", err)
	}
	if saved.PasswordHash != "opaque-hash" {
		t.Fatalf("expected stored hash, got %q", saved.PasswordHash)
	}

	if err := db.SetUserPassword(id+50, "x"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestTransaction_RollsBackOnError(t *testing.T) {
	db := newTestDB(t)

	boom := fmt.Errorf("caller failure")
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO users (name) VALUES (?)", "Ghost"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error back, got %v", err)
	}

	user, err := db.GetUserByName("Ghost")
	if err != nil {
		t.Fatalf("GetUserByName returned error: %v", err)
	}
	if user != nil {
		t.Fatalf("expected rollback to discard insert, got %+v", user)
	}

	// Success path commits
	err = db.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO users (name) VALUES (?)", "Kept")
		return err
	})
	if err != nil {
		t.Fatalf("Transaction returned error: %v", err)
	}
	user, err = db.GetUserByName("Kept")
	if err != nil || user == nil {
		t.Fatalf("expected committed insert to be visible, got (%+v, %v)", user, err)
	}
}

func TestSettings_RoundTripAndDefaults(t *testing.T) {
	db := newTestDB(t)

	if err := db.Probe(); err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}

	val, err := db.GetSetting("missing.key")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "" {
		t.Fatalf("expected empty value for missing key, got %q", val)
	}

	if err := db.SetSetting("log.level", "debug"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	if err := db.InitializeDefaults(); err != nil {
		t.Fatalf("InitializeDefaults returned error: %v", err)
	}

	val, err = db.GetSetting("log.level")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "debug" {
		t.Fatalf("defaults must not overwrite existing values, got %q", val)
	}

	val, err = db.GetSetting("maintenance.schedule")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "0 3 * * *" {
		t.Fatalf("expected default maintenance schedule, got %q", val)
	}

	// Upsert overwrites
	if err := db.SetSetting("log.level", "trace"); err != nil {
		t.Fatalf("SetSetting returned error: %v", err)
	}
	val, _ = db.GetSetting("log.level")
	if val != "trace" {
		t.Fatalf("expected trace after upsert, got %q", val)
	}
}
