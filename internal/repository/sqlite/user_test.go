package sqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/xid"

	"github.com/cns-studios/auth-service/internal/apperror"
)

// newTestDB opens a fresh database in a per-test temp directory.
//
// A file (not ":memory:") because database/sql is a connection POOL: each
// pooled connection to ":memory:" would get its own private database, and
// the concurrency tests below would silently pass against different DBs.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "auth_test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and fails the test on error.
// The hash value doesn't matter at this layer — verification is the
// service's job.
func createTestUser(t *testing.T, db *DB, username string) int64 {
	t.Helper()
	id, err := db.Create(context.Background(), username, "$2a$04$testhashtesthashtesthas")
	if err != nil {
		t.Fatalf("creating test user %q: %v", username, err)
	}
	return id
}

// uniqueUsername returns a valid, collision-free username. An xid is
// exactly 20 lowercase alphanumerics, which happens to be the maximum
// username length.
func uniqueUsername() string {
	return xid.New().String()
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	id := createTestUser(t, db, "alice123")
	if id == 0 {
		t.Error("Create() returned zero id")
	}

	user, err := db.FindActiveByUsername(context.Background(), "alice123")
	if err != nil {
		t.Fatalf("FindActiveByUsername() error = %v", err)
	}
	if user.ID != id {
		t.Errorf("ID = %d, want %d", user.ID, id)
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set created_at")
	}
	if user.LastLoginAt != nil {
		t.Error("fresh user should have nil LastLoginAt")
	}
	if !user.Active {
		t.Error("fresh user should be active")
	}
}

func TestCreate_SeedsDocument(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "alice123")

	user, err := db.FindActiveByUsername(context.Background(), "alice123")
	if err != nil {
		t.Fatalf("FindActiveByUsername() error = %v", err)
	}

	doc := user.Document
	if doc.Profile.DisplayName != "alice123" {
		t.Errorf("DisplayName = %q, want %q", doc.Profile.DisplayName, "alice123")
	}
	if doc.Profile.Avatar != nil {
		t.Errorf("Avatar = %v, want nil", doc.Profile.Avatar)
	}
	if doc.Profile.Level != 1 {
		t.Errorf("Level = %d, want 1", doc.Profile.Level)
	}
	if doc.Profile.JoinDate.IsZero() {
		t.Error("JoinDate not set")
	}
	if doc.Services == nil || len(doc.Services) != 0 {
		t.Errorf("Services = %v, want empty map", doc.Services)
	}
}

func TestCreate_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "alice123")

	_, err := db.Create(context.Background(), "alice123", "$2a$04$differenthash")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate error = %v, want ErrConflict", err)
	}
}

func TestCreate_UsernamesAreCaseSensitive(t *testing.T) {
	db := newTestDB(t)

	createTestUser(t, db, "Alice123")

	// Different case is a DIFFERENT username — no conflict.
	if _, err := db.Create(context.Background(), "alice123", "$2a$04$hash"); err != nil {
		t.Errorf("Create() with different case error = %v, want nil", err)
	}
}

func TestCreate_DeactivatedUserKeepsUsernameReserved(t *testing.T) {
	db := newTestDB(t)

	id := createTestUser(t, db, "alice123")
	if err := db.Deactivate(context.Background(), id); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	// The account is invisible to lookups but its name stays taken.
	_, err := db.Create(context.Background(), "alice123", "$2a$04$hash")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() on a deactivated username error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestFindActiveByUsername_Unknown(t *testing.T) {
	db := newTestDB(t)

	_, err := db.FindActiveByUsername(context.Background(), "nobody99")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindActiveByUsername() error = %v, want ErrNotFound", err)
	}
}

func TestFindActiveByUsername_DeactivatedIsInvisible(t *testing.T) {
	db := newTestDB(t)

	id := createTestUser(t, db, "alice123")
	if err := db.Deactivate(context.Background(), id); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	_, err := db.FindActiveByUsername(context.Background(), "alice123")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("FindActiveByUsername() on deactivated user error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LOGIN RECORDING TESTS
// =========================================================================

func TestRecordLogin(t *testing.T) {
	db := newTestDB(t)

	id := createTestUser(t, db, "alice123")

	if err := db.RecordLogin(context.Background(), id, "203.0.113.7"); err != nil {
		t.Fatalf("RecordLogin() error = %v", err)
	}

	user, err := db.FindActiveByUsername(context.Background(), "alice123")
	if err != nil {
		t.Fatalf("FindActiveByUsername() error = %v", err)
	}
	if user.LastLoginAt == nil {
		t.Fatal("RecordLogin() did not set last_login_at")
	}
	if user.LastLoginIP != "203.0.113.7" {
		t.Errorf("LastLoginIP = %q, want %q", user.LastLoginIP, "203.0.113.7")
	}

	// Last write wins.
	if err := db.RecordLogin(context.Background(), id, "198.51.100.2"); err != nil {
		t.Fatalf("RecordLogin() second call error = %v", err)
	}
	user, _ = db.FindActiveByUsername(context.Background(), "alice123")
	if user.LastLoginIP != "198.51.100.2" {
		t.Errorf("LastLoginIP after second login = %q, want %q", user.LastLoginIP, "198.51.100.2")
	}
}

// =========================================================================
// SERVICE SLICE TESTS
// =========================================================================

func TestServiceSlice_RoundTripIsBytePreserving(t *testing.T) {
	db := newTestDB(t)
	id := createTestUser(t, db, uniqueUsername())

	written := json.RawMessage(`{"score":10,"name":"run #1","nested":{"a":[1,2,3]}}`)
	if err := db.PutServiceSlice(context.Background(), id, "game1", written); err != nil {
		t.Fatalf("PutServiceSlice() error = %v", err)
	}

	read, err := db.GetServiceSlice(context.Background(), id, "game1")
	if err != nil {
		t.Fatalf("GetServiceSlice() error = %v", err)
	}
	if !bytes.Equal(read, written) {
		t.Errorf("GetServiceSlice() = %s, want %s", read, written)
	}
}

func TestGetServiceSlice_NeverWritten(t *testing.T) {
	db := newTestDB(t)
	id := createTestUser(t, db, uniqueUsername())

	_, err := db.GetServiceSlice(context.Background(), id, "game1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetServiceSlice() error = %v, want ErrNotFound", err)
	}
}

func TestPutServiceSlice_UnknownUser(t *testing.T) {
	db := newTestDB(t)

	err := db.PutServiceSlice(context.Background(), 999, "game1", json.RawMessage(`{}`))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("PutServiceSlice() error = %v, want ErrNotFound", err)
	}
}

func TestPutServiceSlice_IsolatesServices(t *testing.T) {
	db := newTestDB(t)
	id := createTestUser(t, db, uniqueUsername())

	a := json.RawMessage(`{"score":1}`)
	b := json.RawMessage(`{"level":"nine"}`)

	if err := db.PutServiceSlice(context.Background(), id, "gameA", a); err != nil {
		t.Fatalf("PutServiceSlice(gameA) error = %v", err)
	}
	if err := db.PutServiceSlice(context.Background(), id, "gameB", b); err != nil {
		t.Fatalf("PutServiceSlice(gameB) error = %v", err)
	}

	gotA, err := db.GetServiceSlice(context.Background(), id, "gameA")
	if err != nil {
		t.Fatalf("GetServiceSlice(gameA) error = %v", err)
	}
	gotB, err := db.GetServiceSlice(context.Background(), id, "gameB")
	if err != nil {
		t.Fatalf("GetServiceSlice(gameB) error = %v", err)
	}
	if !bytes.Equal(gotA, a) {
		t.Errorf("gameA = %s, want %s", gotA, a)
	}
	if !bytes.Equal(gotB, b) {
		t.Errorf("gameB = %s, want %s", gotB, b)
	}
}

func TestPutServiceSlice_ConcurrentWritesToDifferentServicesBothSurvive(t *testing.T) {
	db := newTestDB(t)
	id := createTestUser(t, db, uniqueUsername())

	// The lost-update scenario: both writers read the same document, each
	// sets its own key, the slower write clobbers the faster one's key.
	// The per-user read-modify-write serialization must prevent it.
	const rounds = 25

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := db.PutServiceSlice(context.Background(), id, "gameA", json.RawMessage(`{"score":10}`)); err != nil {
				errs <- err
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			if err := db.PutServiceSlice(context.Background(), id, "gameB", json.RawMessage(`{"score":20}`)); err != nil {
				errs <- err
				return
			}
		}
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent PutServiceSlice() error = %v", err)
	}

	gotA, err := db.GetServiceSlice(context.Background(), id, "gameA")
	if err != nil {
		t.Fatalf("gameA missing after concurrent writes: %v", err)
	}
	gotB, err := db.GetServiceSlice(context.Background(), id, "gameB")
	if err != nil {
		t.Fatalf("gameB missing after concurrent writes: %v", err)
	}
	if !bytes.Equal(gotA, json.RawMessage(`{"score":10}`)) {
		t.Errorf("gameA = %s, want {\"score\":10}", gotA)
	}
	if !bytes.Equal(gotB, json.RawMessage(`{"score":20}`)) {
		t.Errorf("gameB = %s, want {\"score\":20}", gotB)
	}
}

// =========================================================================
// USER DATA TESTS
// =========================================================================

func TestGetUserData(t *testing.T) {
	db := newTestDB(t)
	id := createTestUser(t, db, "alice123")

	if err := db.PutServiceSlice(context.Background(), id, "game1", json.RawMessage(`{"score":10}`)); err != nil {
		t.Fatalf("PutServiceSlice() error = %v", err)
	}

	data, err := db.GetUserData(context.Background(), id)
	if err != nil {
		t.Fatalf("GetUserData() error = %v", err)
	}
	if data.UserID != id {
		t.Errorf("UserID = %d, want %d", data.UserID, id)
	}
	if data.Username != "alice123" {
		t.Errorf("Username = %q, want %q", data.Username, "alice123")
	}
	if _, ok := data.Services["game1"]; !ok {
		t.Error("GetUserData() missing game1 slice")
	}
}

func TestGetUserData_Unknown(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserData(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserData() error = %v, want ErrNotFound", err)
	}
}
