package users

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/rosterd/rosterd/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.DB) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return NewService(db, DefaultMaxNameLength), db
}

func TestRegister_CreatesAndMarksActive(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.Register("  Alice  ")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if user.ID <= 0 {
		t.Fatalf("expected positive id, got %d", user.ID)
	}
	if user.Name != "Alice" {
		t.Fatalf("expected trimmed name Alice, got %q", user.Name)
	}

	active := svc.Active()
	if len(active) != 1 || active[0] != user.ID {
		t.Fatalf("expected new user marked active, got %v", active)
	}
}

func TestRegister_InvalidInputLeavesStoreUntouched(t *testing.T) {
	svc, db := newTestService(t)

	for _, raw := range []any{nil, 12.5, "", "   "} {
		_, err := svc.Register(raw)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Register(%v): expected *ValidationError, got %v", raw, err)
		}
	}

	count, err := db.CountUsers()
	if err != nil {
		t.Fatalf("CountUsers returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no users stored, got %d", count)
	}
	if active := svc.Active(); len(active) != 0 {
		t.Fatalf("expected empty active set, got %v", active)
	}
}

func TestRegister_DuplicateName(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Register("Alice"); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	_, err := svc.Register("Alice")
	if !errors.Is(err, database.ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestLookup_MarksHitsOnly(t *testing.T) {
	svc, db := newTestService(t)

	// Created outside the service so nothing is marked yet
	id, err := db.CreateUser("Bob")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	for _, miss := range []int64{0, -3, id + 100} {
		user, err := svc.Lookup(miss)
		if err != nil {
			t.Fatalf("Lookup(%d) returned error: %v", miss, err)
		}
		if user != nil {
			t.Fatalf("Lookup(%d) expected absent, got %+v", miss, user)
		}
	}
	if active := svc.Active(); len(active) != 0 {
		t.Fatalf("misses must not mark activity, got %v", active)
	}

	user, err := svc.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup returned error: %v", err)
	}
	if user == nil || user.Name != "Bob" {
		t.Fatalf("expected Bob, got %+v", user)
	}

	active := svc.Active()
	if len(active) != 1 || active[0] != id {
		t.Fatalf("expected hit marked active, got %v", active)
	}
}

func TestLookupByName_DoesNotMark(t *testing.T) {
	svc, db := newTestService(t)

	id, err := db.CreateUser("Carol")
	if err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	user, err := svc.LookupByName("Carol")
	if err != nil {
		t.Fatalf("LookupByName returned error: %v", err)
	}
	if user == nil || user.ID != id {
		t.Fatalf("expected Carol, got %+v", user)
	}

	if active := svc.Active(); len(active) != 0 {
		t.Fatalf("name lookups must not mark activity, got %v", active)
	}

	user, err = svc.LookupByName("nobody")
	if err != nil || user != nil {
		t.Fatalf("expected (nil, nil) for absent name, got (%+v, %v)", user, err)
	}
}

func TestNewService_NameLengthFallback(t *testing.T) {
	_, db := newTestService(t)

	if got := NewService(db, 0).MaxNameLength(); got != DefaultMaxNameLength {
		t.Fatalf("expected non-positive cap to fall back to %d, got %d", DefaultMaxNameLength, got)
	}
	if got := NewService(db, -1).MaxNameLength(); got != DefaultMaxNameLength {
		t.Fatalf("expected non-positive cap to fall back to %d, got %d", DefaultMaxNameLength, got)
	}
	if got := NewService(db, 40).MaxNameLength(); got != 40 {
		t.Fatalf("expected explicit cap kept, got %d", got)
	}
}

func TestLogName_CapsLongValues(t *testing.T) {
	long := ""
	for i := 0; i < 30; i++ {
		long += "é"
	}
	if got := logName(long); len([]rune(got)) != 20 {
		t.Fatalf("expected 20 codepoints, got %d", len([]rune(got)))
	}
	if got := logName("short"); got != "short" {
		t.Fatalf("expected short names unchanged, got %q", got)
	}
}
