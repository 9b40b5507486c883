package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/cns-studios/auth-service/internal/apperror"
)

func newTestUserDataService(t *testing.T) (*UserDataService, *mockUserRepo) {
	t.Helper()
	repo := newMockRepo()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewUserDataService(repo, logger), repo
}

func mustCreateUser(t *testing.T, repo *mockUserRepo, username string) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), username, "$2a$04$fakehash")
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return id
}

func TestMe_ReturnsSeededProfile(t *testing.T) {
	svc, repo := newTestUserDataService(t)
	id := mustCreateUser(t, repo, "alice123")

	data, err := svc.Me(context.Background(), id)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if data.UserID != id {
		t.Errorf("UserID = %d, want %d", data.UserID, id)
	}
	if data.Username != "alice123" {
		t.Errorf("Username = %q, want %q", data.Username, "alice123")
	}

	// Fresh accounts start with the seeded profile and no service data.
	if data.Profile.DisplayName != "alice123" {
		t.Errorf("DisplayName = %q, want %q", data.Profile.DisplayName, "alice123")
	}
	if data.Profile.Level != 1 {
		t.Errorf("Level = %d, want 1", data.Profile.Level)
	}
	if len(data.Services) != 0 {
		t.Errorf("Services = %v, want empty", data.Services)
	}
}

func TestMe_UnknownUser(t *testing.T) {
	svc, _ := newTestUserDataService(t)

	_, err := svc.Me(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Me() error = %v, want ErrNotFound", err)
	}
}

func TestServiceData_RoundTrip(t *testing.T) {
	svc, repo := newTestUserDataService(t)
	id := mustCreateUser(t, repo, "alice123")

	// Reading before any write is NotFound.
	_, err := svc.GetServiceData(context.Background(), id, "game1")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("GetServiceData() before write error = %v, want ErrNotFound", err)
	}

	// The stored bytes come back verbatim — field order and all.
	written := json.RawMessage(`{"score":10,"items":["sword","shield"]}`)
	if err := svc.PutServiceData(context.Background(), id, "game1", written); err != nil {
		t.Fatalf("PutServiceData() error = %v", err)
	}

	read, err := svc.GetServiceData(context.Background(), id, "game1")
	if err != nil {
		t.Fatalf("GetServiceData() error = %v", err)
	}
	if !bytes.Equal(read, written) {
		t.Errorf("GetServiceData() = %s, want %s", read, written)
	}
}

func TestPutServiceData_ReplacesWholesale(t *testing.T) {
	svc, repo := newTestUserDataService(t)
	id := mustCreateUser(t, repo, "alice123")

	first := json.RawMessage(`{"score":10,"level":3}`)
	if err := svc.PutServiceData(context.Background(), id, "game1", first); err != nil {
		t.Fatalf("PutServiceData() error = %v", err)
	}

	// The second write drops "level" — REPLACE semantics mean it's gone,
	// not merged.
	second := json.RawMessage(`{"score":20}`)
	if err := svc.PutServiceData(context.Background(), id, "game1", second); err != nil {
		t.Fatalf("PutServiceData() error = %v", err)
	}

	read, err := svc.GetServiceData(context.Background(), id, "game1")
	if err != nil {
		t.Fatalf("GetServiceData() error = %v", err)
	}
	if !bytes.Equal(read, second) {
		t.Errorf("GetServiceData() = %s, want %s (no merge)", read, second)
	}
}

func TestPutServiceData_UnknownUser(t *testing.T) {
	svc, _ := newTestUserDataService(t)

	err := svc.PutServiceData(context.Background(), 999, "game1", json.RawMessage(`{}`))
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("PutServiceData() error = %v, want ErrNotFound", err)
	}
}
