package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNameTaken is returned by CreateUser when another user already holds the
// requested name.
var ErrNameTaken = errors.New("user name already taken")

// UserRecord represents a user stored in the database.
type UserRecord struct {
	ID           int64
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a new user and returns the store-assigned id.
// The name is trimmed before insert so every stored name is reachable by
// GetUserByName; richer validation is the caller's job. id and created_at
// are assigned by the store.
func (db *DB) CreateUser(name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name must be a non-empty string")
	}

	result, err := db.Exec("INSERT INTO users (name) VALUES (?)", name)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("create user %q: %w", name, ErrNameTaken)
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get user id: %w", err)
	}

	return id, nil
}

// GetUserByID retrieves a user by id. A non-positive id short-circuits to
// absent without touching the store. Absence is (nil, nil), never an error.
func (db *DB) GetUserByID(id int64) (*UserRecord, error) {
	if id <= 0 {
		return nil, nil
	}

	user := &UserRecord{}
	var passwordHash sql.NullString
	err := db.QueryRow(`
		SELECT id, name, password_hash, created_at
		FROM users WHERE id = ?
	`, id).Scan(&user.ID, &user.Name, &passwordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	user.PasswordHash = nullStringValue(passwordHash)
	return user, nil
}

// GetUserByName retrieves a user by exact trimmed name, with the same
// absence contract as GetUserByID. An empty name short-circuits to absent.
func (db *DB) GetUserByName(name string) (*UserRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	user := &UserRecord{}
	var passwordHash sql.NullString
	err := db.QueryRow(`
		SELECT id, name, password_hash, created_at
		FROM users WHERE name = ?
	`, name).Scan(&user.ID, &user.Name, &passwordHash, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by name: %w", err)
	}
	user.PasswordHash = nullStringValue(passwordHash)
	return user, nil
}

// SetUserPassword stores a password hash on the user's row. Reports an
// error when no such user exists so callers can tell the operator.
func (db *DB) SetUserPassword(id int64, hash string) error {
	result, err := db.Exec("UPDATE users SET password_hash = ? WHERE id = ?", hash, id)
	if err != nil {
		return fmt.Errorf("failed to set password for user %d: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set password for user %d: %w", id, err)
	}
	if rows == 0 {
		return fmt.Errorf("user %d not found", id)
	}
	return nil
}

// CountUsers returns the number of registered users.
func (db *DB) CountUsers() (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness-constraint
// violation. The driver may report the primary constraint code or the
// extended unique/primary-key codes depending on the statement path.
func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() {
	case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
